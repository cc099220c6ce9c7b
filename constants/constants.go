package constants

const (
	// Name identifies the service in health and version output
	Name = "localstore"

	// Version is the current version of localstore
	Version = "0.1.0"
)

var (
	// Branch is the compiled branch
	Branch string

	// Revision is the compiled revision
	Revision string

	// LatestCommitMessage is the latest commit message
	LatestCommitMessage string

	// BuildTime is the compiled build time
	BuildTime string

	// Compiler is the compiler used during build
	Compiler string
)
