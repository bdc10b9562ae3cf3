package scheduler

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"motif/internal/httpkit"
	"motif/internal/ir"
	"motif/internal/pkg/errors"
)

// PostgresRegistry backs the Registry with the jobs table. Used by the
// split api/worker deployment where both processes share one database.
type PostgresRegistry struct {
	db *pgxpool.Pool
}

func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Create(ctx context.Context, job *Job) error {
	def, err := json.Marshal(job.Definition)
	if err != nil {
		return errors.Wrap(err, "registry.create", "failed to encode definition")
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO jobs (id, owner_id, definition_json, output_format, quality,
		                  status, estimated_duration, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, job.ID, job.OwnerID, string(def), job.OutputFormat, job.Quality,
		string(job.Status), job.EstimatedDuration, job.CreatedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.Conflict("job already exists").WithField("job_id", job.ID)
		}
		return errors.Wrap(err, "registry.create", "db insert failed")
	}
	return nil
}

func (r *PostgresRegistry) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, definition_json, output_format, quality, status,
		       COALESCE(video_uri,''), COALESCE(error_message,''),
		       estimated_duration, created_at, started_at, finished_at
		FROM jobs WHERE id=$1
	`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("job", id)
		}
		return nil, errors.Wrap(err, "registry.get", "db query failed")
	}
	return job, nil
}

func (r *PostgresRegistry) ListByOwner(ctx context.Context, ownerID string) ([]*Job, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, definition_json, output_format, quality, status,
		       COALESCE(video_uri,''), COALESCE(error_message,''),
		       estimated_duration, created_at, started_at, finished_at
		FROM jobs WHERE owner_id=$1
		ORDER BY created_at DESC, id ASC
	`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "registry.list", "db query failed")
	}
	defer rows.Close()

	out := make([]*Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "registry.list", "row scan failed")
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) SetProcessing(ctx context.Context, id string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE jobs SET status=$2, started_at=now()
		WHERE id=$1 AND status NOT IN ('completed','failed')
	`, id, string(StatusProcessing))
	if err != nil {
		return false, errors.Wrap(err, "registry.claim", "db update failed")
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PostgresRegistry) SetCompleted(ctx context.Context, id, videoURI string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET status=$2, video_uri=$3, finished_at=now()
		WHERE id=$1 AND status NOT IN ('completed','failed')
	`, id, string(StatusCompleted), videoURI)
	if err != nil {
		return errors.Wrap(err, "registry.complete", "db update failed")
	}
	return nil
}

func (r *PostgresRegistry) SetFailed(ctx context.Context, id, message string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET status=$2, error_message=$3, finished_at=now()
		WHERE id=$1 AND status NOT IN ('completed','failed')
	`, id, string(StatusFailed), message)
	if err != nil {
		return errors.Wrap(err, "registry.fail", "db update failed")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job     Job
		defJSON string
		status  string
	)
	err := row.Scan(&job.ID, &job.OwnerID, &defJSON, &job.OutputFormat,
		&job.Quality, &status, &job.VideoURI, &job.ErrorMessage,
		&job.EstimatedDuration, &job.CreatedAt, &job.StartedAt, &job.FinishedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	if defJSON != "" {
		var def ir.IR
		if err := json.Unmarshal([]byte(defJSON), &def); err != nil {
			return nil, err
		}
		job.Definition = &def
	}
	job.CreatedAt = job.CreatedAt.UTC()
	if job.StartedAt != nil {
		t := job.StartedAt.UTC()
		job.StartedAt = &t
	}
	if job.FinishedAt != nil {
		t := job.FinishedAt.UTC()
		job.FinishedAt = &t
	}
	return &job, nil
}
