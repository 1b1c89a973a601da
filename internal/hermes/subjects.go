package hermes

const (
	SubjectModelSaved = "potency.model.saved"

	StreamName   = "POTENCY_EVENTS"
	StreamMaxAge = "168h" // 7 days
)

func SubjectModelFitted(sessionID string) string { return "potency.session." + sessionID + ".fitted" }
func SubjectFitFailed(sessionID string) string   { return "potency.session." + sessionID + ".fit_failed" }
func SubjectPredicted(sessionID string) string   { return "potency.session." + sessionID + ".predicted" }
func SubjectSessionExpired(sessionID string) string {
	return "potency.session." + sessionID + ".expired"
}
