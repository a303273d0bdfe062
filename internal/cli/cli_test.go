package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/Sternrassler/tweet-datasource/internal/testutil"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
)

var datasourceEnv = []string{
	"TWITTER_CONSUMER_KEY", "TWITTER_CONSUMER_SECRET", "TWITTER_MAPS_KEY",
	"DATASOURCE_TWITTER_CONSUMER_KEY", "DATASOURCE_TWITTER_CONSUMER_SECRET",
	"DATASOURCE_TWITTER_BASE_URL", "DATASOURCE_TWITTER_REQUESTS_PER_SECOND",
	"DATASOURCE_GEOCODE_MAPS_KEY", "DATASOURCE_REDIS_ADDR",
}

// setupCLI isolates a command run from the environment and earlier runs.
func setupCLI(t *testing.T) *bytes.Buffer {
	t.Helper()

	chdir(t, t.TempDir())
	for _, env := range datasourceEnv {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv("DATASOURCE_LOGGING_LEVEL", "error")

	cfgFile, logLevel, pretty = "", "", false
	searchParams = query.Params{}
	versionCmd.Flags().Set("short", "false")
	versionCmd.Flags().Set("json", "false")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	return buf
}

// useMockTwitter points the configuration at mock with valid credentials.
func useMockTwitter(t *testing.T, mock *testutil.MockTwitter) {
	t.Helper()
	t.Setenv("DATASOURCE_TWITTER_BASE_URL", mock.URL())
	t.Setenv("DATASOURCE_TWITTER_CONSUMER_KEY", testutil.MockConsumerKey)
	t.Setenv("DATASOURCE_TWITTER_CONSUMER_SECRET", testutil.MockConsumerSecret)
	t.Setenv("DATASOURCE_TWITTER_REQUESTS_PER_SECOND", "0")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("testing.Chdir: " + err.Error())
		}
	})
}
