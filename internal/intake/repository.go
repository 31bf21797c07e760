package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("intake session not found")
	// ErrConflict is returned when a concurrent writer won the version
	// race. The caller may retry the whole turn.
	ErrConflict = errors.New("intake session was modified concurrently")
)

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const sessionCols = `id, connection_id, status, medical_data, clinical_handover, doctor_thought,
	completeness, current_agent, follow_up_count, answered_topics, consecutive_errors,
	ai_message_count, conclusion_offered, termination_reason, version,
	started_at, completed_at, created_at, updated_at`

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*IntakeSession, error) {
	query := `SELECT ` + sessionCols + ` FROM intake_sessions WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*IntakeSession, error) {
	var s IntakeSession
	var dataJSON, handoverJSON, thoughtJSON, topicsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.ConnectionID,
		&s.Status,
		&dataJSON,
		&handoverJSON,
		&thoughtJSON,
		&s.Completeness,
		&s.CurrentAgent,
		&s.FollowUpCount,
		&topicsJSON,
		&s.ConsecutiveErrors,
		&s.AIMessageCount,
		&s.ConclusionOffered,
		&s.TerminationReason,
		&s.Version,
		&s.StartedAt,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := unmarshalDoc(dataJSON, &s.MedicalData); err != nil {
		return nil, fmt.Errorf("unmarshal medical data: %w", err)
	}
	if err := unmarshalDoc(handoverJSON, &s.ClinicalHandover); err != nil {
		return nil, fmt.Errorf("unmarshal clinical handover: %w", err)
	}
	if err := unmarshalDoc(thoughtJSON, &s.DoctorThought); err != nil {
		return nil, fmt.Errorf("unmarshal doctor thought: %w", err)
	}
	if err := unmarshalDoc(topicsJSON, &s.AnsweredTopics); err != nil {
		return nil, fmt.Errorf("unmarshal answered topics: %w", err)
	}
	return &s, nil
}

// unmarshalDoc tolerates both SQL NULL and JSON null so that "no value"
// round-trips regardless of how it was written.
func unmarshalDoc(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (r *postgresRepo) Create(ctx context.Context, s *IntakeSession) error {
	dataJSON, handoverJSON, thoughtJSON, topicsJSON, err := marshalSessionDocs(s)
	if err != nil {
		return err
	}
	s.Version = 1
	query := `
		INSERT INTO intake_sessions (` + sessionCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.ConnectionID, s.Status, dataJSON, handoverJSON, thoughtJSON,
		s.Completeness, s.CurrentAgent, s.FollowUpCount, topicsJSON, s.ConsecutiveErrors,
		s.AIMessageCount, s.ConclusionOffered, s.TerminationReason, s.Version,
		s.StartedAt, s.CompletedAt, s.CreatedAt, s.UpdatedAt)
	return err
}

// Update persists the mutated session under the same version CAS as a turn
// commit, without touching the conversation.
func (r *postgresRepo) Update(ctx context.Context, s *IntakeSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.updateSessionTx(ctx, tx, s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.Version++
	return nil
}

// CommitTurn persists the mutated session and both chat messages in one
// transaction, guarded by a compare-and-swap on the version column. Any
// failure rolls back everything.
func (r *postgresRepo) CommitTurn(ctx context.Context, s *IntakeSession, userMsg, aiMsg *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.updateSessionTx(ctx, tx, s); err != nil {
		return err
	}

	insertMsg := `INSERT INTO intake_messages (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := tx.QueryRowContext(ctx, insertMsg, userMsg.SessionID, userMsg.Role, userMsg.Content, userMsg.CreatedAt).Scan(&userMsg.ID); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	if err := tx.QueryRowContext(ctx, insertMsg, aiMsg.SessionID, aiMsg.Role, aiMsg.Content, aiMsg.CreatedAt).Scan(&aiMsg.ID); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.Version++
	return nil
}

// Reset deletes the whole conversation and writes the reset session
// atomically. The session struct must already be in its initial state.
func (r *postgresRepo) Reset(ctx context.Context, s *IntakeSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM intake_messages WHERE session_id = $1`, s.ID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := r.updateSessionTx(ctx, tx, s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.Version++
	return nil
}

func (r *postgresRepo) updateSessionTx(ctx context.Context, tx *sql.Tx, s *IntakeSession) error {
	dataJSON, handoverJSON, thoughtJSON, topicsJSON, err := marshalSessionDocs(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE intake_sessions SET
			status = $2,
			medical_data = $3,
			clinical_handover = $4,
			doctor_thought = $5,
			completeness = $6,
			current_agent = $7,
			follow_up_count = $8,
			answered_topics = $9,
			consecutive_errors = $10,
			ai_message_count = $11,
			conclusion_offered = $12,
			termination_reason = $13,
			version = version + 1,
			started_at = $14,
			completed_at = $15,
			updated_at = $16
		WHERE id = $1 AND version = $17`
	res, err := tx.ExecContext(ctx, query,
		s.ID, s.Status, dataJSON, handoverJSON, thoughtJSON,
		s.Completeness, s.CurrentAgent, s.FollowUpCount, topicsJSON,
		s.ConsecutiveErrors, s.AIMessageCount, s.ConclusionOffered, s.TerminationReason,
		s.StartedAt, s.CompletedAt, s.UpdatedAt, s.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row vanished or a concurrent writer bumped the
		// version first.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM intake_sessions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// marshalSessionDocs serializes the structured documents. Nil pointers
// marshal to JSON null, never to an absent column, so every field
// round-trips explicitly.
func marshalSessionDocs(s *IntakeSession) (data, handover, thought, topics []byte, err error) {
	if data, err = json.Marshal(s.MedicalData); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal medical data: %w", err)
	}
	if handover, err = json.Marshal(s.ClinicalHandover); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal clinical handover: %w", err)
	}
	if thought, err = json.Marshal(s.DoctorThought); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal doctor thought: %w", err)
	}
	if topics, err = json.Marshal(s.AnsweredTopics); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal answered topics: %w", err)
	}
	return data, handover, thought, topics, nil
}

func (r *postgresRepo) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM intake_messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
