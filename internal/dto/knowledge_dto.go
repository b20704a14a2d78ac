package dto

type IngestRequest struct {
	Query string `json:"query" validate:"required,max=256"`
}

type IngestAcceptedResponse struct {
	JobId string `json:"job_id"`
	Query string `json:"query"`
}

// IngestJobMessage is the payload published on the ingest topic.
type IngestJobMessage struct {
	JobId string `json:"job_id"`
	Query string `json:"query"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	IndexReady   bool   `json:"index_ready"`
	PendingTurns int    `json:"pending_turns"`
}
