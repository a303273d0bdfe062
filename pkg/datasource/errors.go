package datasource

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/tweet-datasource/pkg/collector"
)

// EmptyResultMessage is reported when a search matches nothing.
const EmptyResultMessage = "No tweets found for the following query. " +
	"Note: Twitter's REST API only retrieves tweets from the past week."

// Messages for missing credentials.
const (
	MissingKeyMessage    = "The Twitter Consumer Key property has not been set."
	MissingSecretMessage = "The Twitter Consumer Secret property has not been set."
)

// ConfigurationError reports missing or unusable credentials.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports a failed token exchange.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Message returns the human-readable text reported for err.
func Message(err error) string {
	if errors.Is(err, collector.ErrNoResults) {
		return EmptyResultMessage
	}
	return err.Error()
}
