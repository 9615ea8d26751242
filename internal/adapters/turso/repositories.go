package turso

import (
	"database/sql"

	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
)

// Repositories holds all turso repository implementations as port interfaces.
type Repositories struct {
	Experiments    ports.ExperimentRepository
	Participations ports.ParticipationRepository
}

// NewRepositories creates all turso repository implementations from a database connection.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Experiments:    NewExperimentRepository(db),
		Participations: NewParticipationRepository(db),
	}
}
