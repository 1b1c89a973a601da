package hermes

import "time"

type ModelFittedEvent struct {
	SessionID   string    `json:"session_id"`
	Strategy    string    `json:"strategy"`
	Samples     int       `json:"samples"`
	Rejected    int       `json:"rejected"`
	DatasetHash string    `json:"dataset_hash"`
	Slope       *float64  `json:"slope,omitempty"`
	Intercept   *float64  `json:"intercept,omitempty"`
	MSE         *float64  `json:"mse,omitempty"`
	R2          *float64  `json:"r2,omitempty"`
	FittedAt    time.Time `json:"fitted_at"`
}

type FitFailedEvent struct {
	SessionID string `json:"session_id"`
	Strategy  string `json:"strategy"`
	Error     string `json:"error"`
}

type PredictionEvent struct {
	SessionID string  `json:"session_id"`
	Strategy  string  `json:"strategy"`
	EC50nM    float64 `json:"ec50_nm"`
	Potency   float64 `json:"potency"`
}

type ModelSavedEvent struct {
	SessionID string `json:"session_id"`
	Location  string `json:"location"`
	Error     string `json:"error,omitempty"`
}

type SessionExpiredEvent struct {
	SessionID string        `json:"session_id"`
	IdleFor   time.Duration `json:"idle_for_ns"`
}
