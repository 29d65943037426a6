package endpoints

import (
	"github.com/jackzampolin/bindery/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Job endpoints
		&CreateJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&ArtifactEndpoint{},
		&CancelJobEndpoint{},
	}
}

// JobCommands returns the endpoints grouped under the "jobs" CLI
// subcommand.
func JobCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&ArtifactEndpoint{},
		&CancelJobEndpoint{},
	}
}
