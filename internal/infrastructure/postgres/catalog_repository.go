package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
)

// musicalRow はDBの行を表す構造体
type musicalRow struct {
	ID               int64          `db:"id"`
	Name             string         `db:"name"`
	RunTimeMinutes   int            `db:"run_time_minutes"`
	Categories       pq.StringArray `db:"categories"`
	AgeRestriction   string         `db:"age_restriction"`
	BasePrice        int64          `db:"base_price"`
	TotalTickets     int            `db:"total_tickets"`
	AvailableTickets int            `db:"available_tickets"`
	AvailableDays    string         `db:"available_days"`
}

// toEntity は musicalRow を Musical エンティティに変換する
func (r *musicalRow) toEntity() (*catalog.Musical, error) {
	days, err := catalog.ParseWeekdays(r.AvailableDays)
	if err != nil {
		return nil, fmt.Errorf("上演曜日の解釈に失敗 (musical=%d): %w", r.ID, err)
	}
	return &catalog.Musical{
		ID:               r.ID,
		Name:             r.Name,
		RunTimeMinutes:   r.RunTimeMinutes,
		Categories:       []string(r.Categories),
		AgeRestriction:   r.AgeRestriction,
		BasePrice:        pricing.Amount(r.BasePrice),
		TotalTickets:     r.TotalTickets,
		AvailableTickets: r.AvailableTickets,
		AvailableDays:    days,
	}, nil
}

type venueRow struct {
	ID            int64  `db:"id"`
	Name          string `db:"name"`
	TotalCapacity int    `db:"total_capacity"`
}

type sectionRow struct {
	ID        int64  `db:"id"`
	VenueID   int64  `db:"venue_id"`
	Name      string `db:"name"`
	Capacity  int    `db:"capacity"`
	BasePrice int64  `db:"base_price"`
}

func (r *sectionRow) toEntity() catalog.Section {
	return catalog.Section{
		ID: r.ID, VenueID: r.VenueID, Name: r.Name,
		Capacity: r.Capacity, BasePrice: pricing.Amount(r.BasePrice),
	}
}

const musicalColumns = `id, name, run_time_minutes, categories, age_restriction, base_price, total_tickets, available_tickets, available_days`

// CatalogRepository はカタログの PostgreSQL 実装
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository は CatalogRepository を作成する
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetMusicalByName は名前（大文字小文字を区別しない）からミュージカルを取得する
func (r *CatalogRepository) GetMusicalByName(ctx context.Context, name string) (*catalog.Musical, error) {
	var row musicalRow
	query := `SELECT ` + musicalColumns + ` FROM musicals WHERE LOWER(name) = LOWER($1)`
	if err := r.db.GetContext(ctx, &row, query, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrMusicalNotFound
		}
		return nil, fmt.Errorf("ミュージカル取得に失敗: %w", err)
	}
	return row.toEntity()
}

// GetMusicalByID はIDからミュージカルを取得する
func (r *CatalogRepository) GetMusicalByID(ctx context.Context, id int64) (*catalog.Musical, error) {
	var row musicalRow
	query := `SELECT ` + musicalColumns + ` FROM musicals WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrMusicalNotFound
		}
		return nil, fmt.Errorf("ミュージカル取得に失敗: %w", err)
	}
	return row.toEntity()
}

// ListMusicals はミュージカル一覧を名前順で取得する
func (r *CatalogRepository) ListMusicals(ctx context.Context) ([]*catalog.Musical, error) {
	var rows []musicalRow
	query := `SELECT ` + musicalColumns + ` FROM musicals ORDER BY name`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("ミュージカル一覧取得に失敗: %w", err)
	}
	musicals := make([]*catalog.Musical, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		musicals = append(musicals, m)
	}
	return musicals, nil
}

// GetVenuesForMusical はミュージカルを上演する会場をセクション付きで取得する
func (r *CatalogRepository) GetVenuesForMusical(ctx context.Context, musicalName string) ([]*catalog.Venue, error) {
	var rows []venueRow
	query := `
		SELECT v.id, v.name, v.total_capacity
		FROM venues v
		JOIN musical_venues mv ON mv.venue_id = v.id
		JOIN musicals m ON m.id = mv.musical_id
		WHERE LOWER(m.name) = LOWER($1)
		ORDER BY v.id
	`
	if err := r.db.SelectContext(ctx, &rows, query, strings.TrimSpace(musicalName)); err != nil {
		return nil, fmt.Errorf("会場一覧取得に失敗: %w", err)
	}
	venues := make([]*catalog.Venue, 0, len(rows))
	for _, row := range rows {
		sections, err := r.GetVenueSections(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		venues = append(venues, &catalog.Venue{
			ID: row.ID, Name: row.Name, TotalCapacity: row.TotalCapacity, Sections: sections,
		})
	}
	return venues, nil
}

// GetVenueSections は会場のセクション一覧を取得する
func (r *CatalogRepository) GetVenueSections(ctx context.Context, venueID int64) ([]catalog.Section, error) {
	var rows []sectionRow
	query := `SELECT id, venue_id, name, capacity, base_price FROM sections WHERE venue_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, venueID); err != nil {
		return nil, fmt.Errorf("セクション一覧取得に失敗: %w", err)
	}
	sections := make([]catalog.Section, len(rows))
	for i := range rows {
		sections[i] = rows[i].toEntity()
	}
	return sections, nil
}

// CreateMusical はミュージカルを作成する
func (r *CatalogRepository) CreateMusical(ctx context.Context, m *catalog.Musical) error {
	query := `
		INSERT INTO musicals (name, run_time_minutes, categories, age_restriction, base_price, total_tickets, available_tickets, available_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		m.Name, m.RunTimeMinutes, pq.Array(m.Categories), m.AgeRestriction, int64(m.BasePrice),
		m.TotalTickets, m.AvailableTickets, strings.Join(m.AvailableDayNames(), ", "),
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("ミュージカル作成に失敗: %w", err)
	}
	return nil
}

// CreateVenue は会場とセクションを1トランザクションで作成する
func (r *CatalogRepository) CreateVenue(ctx context.Context, v *catalog.Venue) error {
	if err := v.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO venues (name, total_capacity) VALUES ($1, $2) RETURNING id`,
		v.Name, v.TotalCapacity,
	).Scan(&v.ID); err != nil {
		return fmt.Errorf("会場作成に失敗: %w", err)
	}

	for i := range v.Sections {
		s := &v.Sections[i]
		s.VenueID = v.ID
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO sections (venue_id, name, capacity, base_price) VALUES ($1, $2, $3, $4) RETURNING id`,
			s.VenueID, s.Name, s.Capacity, int64(s.BasePrice),
		).Scan(&s.ID); err != nil {
			return fmt.Errorf("セクション作成に失敗: %w", err)
		}
	}
	return tx.Commit()
}

// AddVenueToMusical はミュージカルの上演会場を登録する
func (r *CatalogRepository) AddVenueToMusical(ctx context.Context, musicalID, venueID int64) error {
	query := `INSERT INTO musical_venues (musical_id, venue_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, musicalID, venueID); err != nil {
		return fmt.Errorf("上演会場の登録に失敗: %w", err)
	}
	return nil
}

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ catalog.Writer     = (*CatalogRepository)(nil)
)
