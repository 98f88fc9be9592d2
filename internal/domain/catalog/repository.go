package catalog

import "context"

// Repository はカタログ（作品・会場・セクション）の読み取り専用リポジトリ
type Repository interface {
	// GetMusicalByName は名前（大文字小文字を区別しない）からミュージカルを取得する
	GetMusicalByName(ctx context.Context, name string) (*Musical, error)

	// GetMusicalByID はIDからミュージカルを取得する
	GetMusicalByID(ctx context.Context, id int64) (*Musical, error)

	// ListMusicals はミュージカル一覧を取得する
	ListMusicals(ctx context.Context) ([]*Musical, error)

	// GetVenuesForMusical はミュージカルを上演する会場をセクション付きで取得する
	GetVenuesForMusical(ctx context.Context, musicalName string) ([]*Venue, error)

	// GetVenueSections は会場のセクション一覧を取得する
	GetVenueSections(ctx context.Context, venueID int64) ([]Section, error)
}

// Writer はカタログへの書き込み操作。デモデータの投入とテストでのみ使う
type Writer interface {
	// CreateMusical はミュージカルを作成し、採番したIDを設定する
	CreateMusical(ctx context.Context, m *Musical) error

	// CreateVenue は会場をセクションごと作成し、採番したIDを設定する
	CreateVenue(ctx context.Context, v *Venue) error

	// AddVenueToMusical はミュージカルの上演会場を登録する
	AddVenueToMusical(ctx context.Context, musicalID, venueID int64) error
}
