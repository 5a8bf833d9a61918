// Package support stores support tickets and feedback as array documents.
package support

import (
	"context"
	"errors"
	"log"
	"time"

	"beacon/api/internal/blob"
)

const (
	ticketsPath  = "support/tickets.json"
	feedbackPath = "support/feedback.json"
)

type Ticket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	docs *blob.Store
}

func NewStore(docs *blob.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) AddTicket(ctx context.Context, t Ticket) error {
	if t.Status == "" {
		t.Status = "open"
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	tickets, err := s.ListTickets(ctx)
	if err != nil {
		return err
	}
	tickets = append(tickets, t)
	return s.docs.Save(ctx, ticketsPath, tickets, blob.SaveOptions{})
}

func (s *Store) ListTickets(ctx context.Context) ([]Ticket, error) {
	tickets := make([]Ticket, 0)
	if _, err := s.docs.Load(ctx, ticketsPath, &tickets); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		log.Printf("support: %v; treating tickets as empty", verr)
		return []Ticket{}, nil
	}
	return tickets, nil
}

func (s *Store) AddFeedback(ctx context.Context, f Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	entries, err := s.ListFeedback(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, f)
	return s.docs.Save(ctx, feedbackPath, entries, blob.SaveOptions{})
}

func (s *Store) ListFeedback(ctx context.Context) ([]Feedback, error) {
	entries := make([]Feedback, 0)
	if _, err := s.docs.Load(ctx, feedbackPath, &entries); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		log.Printf("support: %v; treating feedback as empty", verr)
		return []Feedback{}, nil
	}
	return entries, nil
}
