package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/model"
)

// ReactionOutcome describes what a Toggle call did.
type ReactionOutcome string

const (
	ReactionAdded    ReactionOutcome = "added"
	ReactionReplaced ReactionOutcome = "replaced"
	ReactionRemoved  ReactionOutcome = "removed"
)

type ReactionRepository struct {
	pool *pgxpool.Pool
}

func NewReactionRepository(pool *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// Toggle applies the at-most-one-reaction-per-user rule: a first reaction is
// added, a different emoji replaces the user's previous one, and re-selecting
// the same emoji removes it. The user's existing row is locked so concurrent
// toggles on the same (message, user) serialize instead of clobbering each
// other.
func (r *ReactionRepository) Toggle(ctx context.Context, messageID, userID, userName, emoji string) (ReactionOutcome, error) {
	defer logger.DeferLogDuration("reaction.Toggle", time.Now())()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("reactionRepo.Toggle begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT emoji FROM message_reactions
		 WHERE message_id = $1 AND user_id = $2 FOR UPDATE`,
		messageID, userID,
	).Scan(&current)

	var outcome ReactionOutcome
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_reactions (message_id, user_id, user_name, emoji, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			messageID, userID, userName, emoji, time.Now().UTC(),
		); err != nil {
			return "", fmt.Errorf("reactionRepo.Toggle insert: %w", err)
		}
		outcome = ReactionAdded
	case err != nil:
		return "", fmt.Errorf("reactionRepo.Toggle select: %w", err)
	case current == emoji:
		if _, err := tx.Exec(ctx,
			`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`,
			messageID, userID,
		); err != nil {
			return "", fmt.Errorf("reactionRepo.Toggle delete: %w", err)
		}
		outcome = ReactionRemoved
	default:
		if _, err := tx.Exec(ctx,
			`UPDATE message_reactions SET emoji = $3, user_name = $4, created_at = $5
			 WHERE message_id = $1 AND user_id = $2`,
			messageID, userID, emoji, userName, time.Now().UTC(),
		); err != nil {
			return "", fmt.Errorf("reactionRepo.Toggle update: %w", err)
		}
		outcome = ReactionReplaced
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("reactionRepo.Toggle commit: %w", err)
	}
	return outcome, nil
}

// GroupsByMessage returns the message's reactions grouped per emoji. Counts
// are recomputed from the user set on every read, never stored, so they can
// never drift.
func (r *ReactionRepository) GroupsByMessage(ctx context.Context, messageID string) ([]model.ReactionGroup, error) {
	defer logger.DeferLogDuration("reaction.GroupsByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT message_id, user_id, user_name, emoji, created_at
		 FROM message_reactions
		 WHERE message_id = $1
		 ORDER BY created_at, user_id`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("reactionRepo.GroupsByMessage query: %w", err)
	}
	defer rows.Close()

	byEmoji := make(map[string]int, 4)
	groups := make([]model.ReactionGroup, 0, 4)
	for rows.Next() {
		var rc model.Reaction
		if err := rows.Scan(&rc.MessageID, &rc.UserID, &rc.UserName, &rc.Emoji, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("reactionRepo.GroupsByMessage scan: %w", err)
		}
		idx, ok := byEmoji[rc.Emoji]
		if !ok {
			idx = len(groups)
			byEmoji[rc.Emoji] = idx
			groups = append(groups, model.ReactionGroup{Emoji: rc.Emoji})
		}
		groups[idx].Users = append(groups[idx].Users, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reactionRepo.GroupsByMessage rows: %w", err)
	}
	for i := range groups {
		groups[i].Count = len(groups[i].Users)
	}
	return groups, nil
}
