package assemble

import (
	"strings"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
)

const promptEN = `You are a legal assistant. Answer the question using only the context below.
If the answer is not in the context, say that you do not know. Never invent information.
%PII_NOTE%
Context:
%CONTEXT%
Question: %QUERY%
Answer:`

const promptFR = `Vous êtes un assistant juridique. Répondez à la question en utilisant uniquement le contexte ci-dessous.
Si la réponse ne figure pas dans le contexte, dites que vous ne savez pas. N'inventez jamais d'informations.
%PII_NOTE%
Contexte :
%CONTEXT%
Question : %QUERY%
Réponse :`

const piiNoteEN = `Bracketed tokens such as [PERSON] or [EMAIL] mark redacted personal data; refer to them as written.`

const piiNoteFR = `Les jetons entre crochets comme [PERSON] ou [EMAIL] marquent des données personnelles caviardées ; reprenez-les tels quels.`

// Prompt renders the generator prompt in the request language. Only the
// sanitized query and passage texts are ever interpolated.
func (qc *QueryContext) Prompt(language lang.Lang) string {
	var blocks strings.Builder
	for _, pc := range qc.Passages {
		blocks.WriteString("Source: ")
		blocks.WriteString(pc.SourceDoc)
		blocks.WriteString("\nContent: ")
		blocks.WriteString(pc.Sanitized.Redacted)
		blocks.WriteString("\n\n")
	}

	tmpl, note := promptEN, piiNoteEN
	if language == lang.French {
		tmpl, note = promptFR, piiNoteFR
	}
	if !qc.Protected {
		note = ""
	}
	out := strings.Replace(tmpl, "%PII_NOTE%", note, 1)
	out = strings.Replace(out, "%CONTEXT%", blocks.String(), 1)
	return strings.Replace(out, "%QUERY%", qc.Query.Redacted, 1)
}

// Citations lists (source_doc, passage_id) pairs in inclusion order.
func (qc *QueryContext) Citations() []Citation {
	cites := make([]Citation, 0, len(qc.Passages))
	for _, pc := range qc.Passages {
		cites = append(cites, Citation{SourceDoc: pc.SourceDoc, PassageID: pc.ID})
	}
	return cites
}

// Citation names one passage that contributed to the answer.
type Citation struct {
	SourceDoc string `json:"source_doc"`
	PassageID string `json:"passage_id"`
}
