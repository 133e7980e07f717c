package ipc

// PingRequest checks backend liveness over the control socket.
type PingRequest struct{}

// PingResponse confirms the backend answered.
type PingResponse struct {
	Pong bool `json:"pong"`
	PID  int  `json:"pid"`
}

// StopRequest asks the backend to shut down gracefully.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches backend status.
type StatusRequest struct{}

// StatusResponse represents backend runtime status information.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	Bind          string `json:"bind"`
	BackendURL    string `json:"backend_url"`
	Model         string `json:"model"`
	RunID         string `json:"run_id"`
	StartedAt     string `json:"started_at"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SocketPath    string `json:"socket_path"`
	LockPath      string `json:"lock_path"`
	RunsDBPath    string `json:"runs_db_path"`
}
