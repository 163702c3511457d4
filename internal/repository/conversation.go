package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/model"
)

const convCols = `id, participant_lo, participant_hi, created_at,
	last_message_content, last_message_sender_id, last_message_at`

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// scanConversation scans a row in convCols order.
func scanConversation(s interface{ Scan(dest ...any) error }, c *model.Conversation) error {
	var lastAt *time.Time
	var lastContent, lastSender string
	if err := s.Scan(&c.ID, &c.ParticipantLo, &c.ParticipantHi, &c.CreatedAt,
		&lastContent, &lastSender, &lastAt); err != nil {
		return err
	}
	c.Participants = []string{c.ParticipantLo, c.ParticipantHi}
	if lastAt != nil {
		c.LastMessage = &model.LastMessage{
			Content:   lastContent,
			SenderID:  lastSender,
			Timestamp: *lastAt,
		}
	}
	return nil
}

// FindOrCreate returns the conversation for the unordered pair (a, b),
// creating it on first use. Safe under concurrent calls from both
// participants: the sorted-pair unique index makes the insert race resolve to
// exactly one row and the loser reselects the winner's conversation.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, a, b string) (*model.Conversation, bool, error) {
	defer logger.DeferLogDuration("conv.FindOrCreate", time.Now())()
	if a == b || a == "" || b == "" {
		return nil, false, fmt.Errorf("convRepo.FindOrCreate participants %q/%q: %w", a, b, ErrConflict)
	}
	lo, hi := model.SortPair(a, b)

	c := &model.Conversation{}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, participant_lo, participant_hi, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (participant_lo, participant_hi) DO NOTHING
		 RETURNING `+convCols,
		uuid.New().String(), lo, hi, time.Now().UTC(),
	)
	err := scanConversation(row, c)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("convRepo.FindOrCreate insert: %w", err)
	}

	// Lost the race (or the conversation already existed): reuse it.
	existing, err := r.findByPair(ctx, lo, hi)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ConversationRepository) findByPair(ctx context.Context, lo, hi string) (*model.Conversation, error) {
	c := &model.Conversation{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+convCols+` FROM conversations
		 WHERE participant_lo = $1 AND participant_hi = $2`, lo, hi,
	)
	if err := scanConversation(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convRepo.findByPair: %w", err)
	}
	return c, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetByID", time.Now())()
	c := &model.Conversation{}
	row := r.pool.QueryRow(ctx, `SELECT `+convCols+` FROM conversations WHERE id = $1`, id)
	if err := scanConversation(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convRepo.GetByID: %w", err)
	}
	return c, nil
}

// SetOverlay upserts one per-user flag (pin/archive/mute). Only the caller's
// row is touched; the other participant's view is unaffected.
func (r *ConversationRepository) SetOverlay(ctx context.Context, conversationID, userID string, kind model.OverlayKind, value bool) error {
	defer logger.DeferLogDuration("conv.SetOverlay", time.Now())()
	var col string
	switch kind {
	case model.OverlayPinned:
		col = "pinned"
	case model.OverlayArchived:
		col = "archived"
	case model.OverlayMuted:
		col = "muted"
	default:
		return fmt.Errorf("convRepo.SetOverlay kind %q: %w", kind, ErrConflict)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_overlays (conversation_id, user_id, `+col+`)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (conversation_id, user_id) DO UPDATE SET `+col+` = $3`,
		conversationID, userID, value,
	)
	if err != nil {
		return fmt.Errorf("convRepo.SetOverlay: %w", err)
	}
	return nil
}

// SetCleared records the clear-history cutoff for one user. Messages at or
// before the cutoff are hidden from that user's view only.
func (r *ConversationRepository) SetCleared(ctx context.Context, conversationID, userID string, cutoff time.Time) error {
	defer logger.DeferLogDuration("conv.SetCleared", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_overlays (conversation_id, user_id, cleared_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (conversation_id, user_id) DO UPDATE SET cleared_at = $3`,
		conversationID, userID, cutoff,
	)
	if err != nil {
		return fmt.Errorf("convRepo.SetCleared: %w", err)
	}
	return nil
}

// GetOverlay returns the user's overlay, or the zero overlay if none exists.
func (r *ConversationRepository) GetOverlay(ctx context.Context, conversationID, userID string) (*model.Overlay, error) {
	defer logger.DeferLogDuration("conv.GetOverlay", time.Now())()
	o := &model.Overlay{ConversationID: conversationID, UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT pinned, archived, muted, cleared_at FROM conversation_overlays
		 WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&o.Pinned, &o.Archived, &o.Muted, &o.ClearedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, nil
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetOverlay: %w", err)
	}
	return o, nil
}

// ListForUser returns all of the user's conversations with their overlay and
// unread count, pinned first, most recent activity first within each group.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]model.ConversationView, error) {
	defer logger.DeferLogDuration("conv.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.participant_lo, c.participant_hi, c.created_at,
		        c.last_message_content, c.last_message_sender_id, c.last_message_at,
		        COALESCE(o.pinned, false), COALESCE(o.archived, false), COALESCE(o.muted, false), o.cleared_at,
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id AND m.receiver_id = $1
		           AND m.status != 'read' AND m.status != 'failed' AND m.deleted = false
		           AND (o.cleared_at IS NULL OR m.created_at > o.cleared_at))
		 FROM conversations c
		 LEFT JOIN conversation_overlays o ON o.conversation_id = c.id AND o.user_id = $1
		 WHERE c.participant_lo = $1 OR c.participant_hi = $1
		 ORDER BY COALESCE(o.pinned, false) DESC, c.last_message_at DESC NULLS LAST`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	views := make([]model.ConversationView, 0, 16)
	for rows.Next() {
		var v model.ConversationView
		var lastAt *time.Time
		var lastContent, lastSender string
		if err := rows.Scan(&v.Conversation.ID, &v.Conversation.ParticipantLo, &v.Conversation.ParticipantHi,
			&v.Conversation.CreatedAt, &lastContent, &lastSender, &lastAt,
			&v.Overlay.Pinned, &v.Overlay.Archived, &v.Overlay.Muted, &v.Overlay.ClearedAt,
			&v.UnreadCount); err != nil {
			return nil, fmt.Errorf("convRepo.ListForUser scan: %w", err)
		}
		v.Conversation.Participants = []string{v.Conversation.ParticipantLo, v.Conversation.ParticipantHi}
		if lastAt != nil {
			v.Conversation.LastMessage = &model.LastMessage{Content: lastContent, SenderID: lastSender, Timestamp: *lastAt}
		}
		v.Overlay.ConversationID = v.Conversation.ID
		v.Overlay.UserID = userID
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser rows: %w", err)
	}
	return views, nil
}

// UnreadCount counts messages addressed to the user that are not yet read,
// after the user's clear cutoff if any.
func (r *ConversationRepository) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	defer logger.DeferLogDuration("conv.UnreadCount", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 LEFT JOIN conversation_overlays o
		   ON o.conversation_id = m.conversation_id AND o.user_id = $2
		 WHERE m.conversation_id = $1 AND m.receiver_id = $2
		   AND m.status != 'read' AND m.status != 'failed' AND m.deleted = false
		   AND (o.cleared_at IS NULL OR m.created_at > o.cleared_at)`,
		conversationID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("convRepo.UnreadCount: %w", err)
	}
	return count, nil
}

// GlobalUnread sums unread counts across the user's conversations for the
// global badge. Muted and archived conversations are excluded from the sum
// (they still keep their per-conversation counts).
func (r *ConversationRepository) GlobalUnread(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("conv.GlobalUnread", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 LEFT JOIN conversation_overlays o
		   ON o.conversation_id = m.conversation_id AND o.user_id = $1
		 WHERE m.receiver_id = $1
		   AND m.status != 'read' AND m.status != 'failed' AND m.deleted = false
		   AND COALESCE(o.archived, false) = false
		   AND COALESCE(o.muted, false) = false
		   AND (o.cleared_at IS NULL OR m.created_at > o.cleared_at)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("convRepo.GlobalUnread: %w", err)
	}
	return count, nil
}
