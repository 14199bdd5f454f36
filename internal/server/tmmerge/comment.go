package tmmerge

import "fmt"

const commentPrefix = "auto translated by TM merge from"

// ProvenanceComment is the target comment recorded for a merged translation.
func ProvenanceComment(o Origin) string {
	switch o := o.(type) {
	case ImportedOrigin:
		return fmt.Sprintf("%s translation memory: %s, unique id: %s", commentPrefix, o.TMSlug, o.UniqueID)
	case TextFlowOrigin:
		return fmt.Sprintf("%s project: %s, version: %s, DocId: %s",
			commentPrefix, o.Details.ProjectName, o.Details.IterationName, o.Details.DocID)
	}
	return commentPrefix + " translation memory"
}
