package constant

const (
	DefaultAudioLanguage = "hi-IN"
	AudioFormField       = "file"

	PersistenceWarning = "The answer could not be saved to the session. Retry with retry_key to store it."

	HealthStatusOK       = "ok"
	HealthStatusDegraded = "initializing"
)

// Log modules.
const (
	ModuleHTTP      = "HTTP"
	ModuleChat      = "CHAT"
	ModuleIngest    = "INGEST"
	ModuleBootstrap = "BOOTSTRAP"
	ModuleContainer = "CONTAINER"
)
