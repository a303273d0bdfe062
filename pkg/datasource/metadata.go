package datasource

import "encoding/json"

// Metadata vocabulary.
const (
	MetadataSchema = "https://vocab.lappsgrid.org/schema/datasource-schema-1.0.0.json"
	LicenseApache2 = "http://vocab.lappsgrid.org/ns/license#apache-2.0"
	AllowAny       = "http://vocab.lappsgrid.org/ns/allow#any"
)

// Metadata describes the datasource.
type Metadata struct {
	Schema      string `json:"$schema"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
	Version     string `json:"version"`
	License     string `json:"license"`
	Allow       string `json:"allow"`
	Encoding    string `json:"encoding"`
}

// NewMetadata returns the datasource descriptor for version.
func NewMetadata(version string) Metadata {
	return Metadata{
		Schema:      MetadataSchema,
		Name:        "Twitter Datasource",
		Description: "Extracts tweets based on query from Twitter's REST API.",
		Vendor:      "http://www.anc.org",
		Version:     version,
		License:     LicenseApache2,
		Allow:       AllowAny,
		Encoding:    "UTF-8",
	}
}

// JSON renders the descriptor as indented JSON.
func (m Metadata) JSON() string {
	out, _ := json.MarshalIndent(m, "", "  ")
	return string(out)
}
