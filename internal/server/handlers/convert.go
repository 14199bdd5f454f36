package handlers

import (
	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/pkg/api"
)

func toProjectResponse(p *models.Project) api.ProjectResponse {
	maintainers := p.Maintainers
	if maintainers == nil {
		maintainers = []string{}
	}
	return api.ProjectResponse{
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Maintainers: maintainers,
		CreatedAt:   p.CreatedAt,
	}
}

func toVersionResponse(v *models.ProjectVersion) api.VersionResponse {
	return api.VersionResponse{
		ProjectSlug: v.ProjectSlug,
		Slug:        v.Slug,
		Status:      string(v.Status),
		CreatedAt:   v.CreatedAt,
	}
}

func toTextUnit(tf *models.TextFlow) api.TextUnit {
	u := api.TextUnit{
		ID:       tf.ID,
		ResID:    tf.ResID,
		Context:  tf.Context,
		Contents: tf.Contents,
		State:    string(models.TargetState(tf.Target)),
		Version:  models.TargetVersion(tf.Target),
	}
	if tf.Document != nil {
		u.DocID = tf.Document.DocID
	}
	if tf.Target != nil {
		u.TargetContents = tf.Target.Contents
	}
	return u
}

func toTranslationResults(results []models.TranslationResult) api.TranslationResultsResponse {
	out := api.TranslationResultsResponse{Results: make([]api.TranslationResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, api.TranslationResult{
			ID:          r.TransUnitID,
			Success:     r.Success,
			State:       string(r.State),
			Contents:    r.Contents,
			BaseVersion: r.BaseVersion,
			NewVersion:  r.NewVersion,
			Error:       r.ErrorMessage,
		})
	}
	return out
}

func toEvent(ev models.TextFlowTargetUpdated) api.Event {
	return api.Event{
		ID:             ev.ID,
		Time:           ev.Time,
		Type:           string(ev.UpdateType),
		EditorClientID: ev.EditorClientID,
		DocID:          ev.DocID,
		TextFlowID:     ev.TextFlowID,
		State:          string(ev.State),
		PreviousState:  string(ev.PreviousState),
		Contents:       ev.Contents,
		BaseVersion:    ev.BaseVersion,
		Username:       ev.Username,
	}
}
