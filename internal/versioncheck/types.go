package versioncheck

import "time"

// Cache represents the cached version check data.
type Cache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

// GitHubRelease represents the GitHub API response for a release.
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// githubAPIURL is the GitHub API endpoint for fetching the latest release.
// A var, not a const, so tests can point it at an httptest.Server.
var githubAPIURL = "https://api.github.com/repos/scenario-miner/scenario-miner/releases/latest"

const (
	// checkInterval is the duration between version checks.
	checkInterval = 24 * time.Hour

	// httpTimeout bounds the GitHub API request.
	httpTimeout = 2 * time.Second

	// cacheFileName is the cache file stored in the global config directory.
	cacheFileName = "version_check.json"

	// globalConfigDirName is the global config directory under the user's home.
	globalConfigDirName = ".config/scenario-miner"
)
