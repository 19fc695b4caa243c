package installer

// Keys used only while the wizard runs. They never reach the .env file.
const (
	keyBackend = "_BACKEND"
	keyChannel = "_CHANNEL"
)

type InstallState struct {
	EnvVars map[string]string
	EnvPath string
}

func NewInstallState(envPath string) *InstallState {
	return &InstallState{
		EnvVars: make(map[string]string),
		EnvPath: envPath,
	}
}
