// Package misc keeps build time information.
package misc

var (
	appName = "epub2pdf"
	// set by linker
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
