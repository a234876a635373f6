package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionDirectoryList   = "directory.list"
	ActionDirectoryExport = "directory.export"
	EntityEmployee        = "employee"
)

type Event struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"companyId"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	Outcome    string          `json:"outcome"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Filter struct {
	Action    string
	Outcome   string
	ActorUser string
}

type Recorder interface {
	Record(ctx context.Context, evt Event, details any) error
}

// Nop discards events; used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event, any) error { return nil }

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, evt Event, details any) error {
	var detailsJSON []byte
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		detailsJSON = payload
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (id, company_id, actor_user_id, action, entity_type, outcome, request_id, ip, details_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, evt.ID, evt.CompanyID, evt.ActorID, evt.Action, evt.EntityType, evt.Outcome, evt.RequestID, evt.IP, detailsJSON)
	return err
}

func (s *Service) Count(ctx context.Context, companyID string, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", companyID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, companyID string, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildBaseQuery("SELECT id, company_id, actor_user_id, action, entity_type, outcome, request_id, ip, details_json, created_at", companyID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.CompanyID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.Outcome, &evt.RequestID, &evt.IP, &evt.Details, &evt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix, companyID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE company_id = $1"
	args := []any{companyID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", len(args)+1)
		args = append(args, filter.Outcome)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	return query, args
}
