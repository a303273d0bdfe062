package datasource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	var md map[string]string
	require.NoError(t, json.Unmarshal([]byte(NewMetadata("1.2.3").JSON()), &md))

	assert.Equal(t, "Twitter Datasource", md["name"])
	assert.Equal(t, "Extracts tweets based on query from Twitter's REST API.", md["description"])
	assert.Equal(t, "http://www.anc.org", md["vendor"])
	assert.Equal(t, "1.2.3", md["version"])
	assert.Equal(t, LicenseApache2, md["license"])
	assert.Equal(t, AllowAny, md["allow"])
	assert.Equal(t, "UTF-8", md["encoding"])
	assert.Equal(t, MetadataSchema, md["$schema"])
}
