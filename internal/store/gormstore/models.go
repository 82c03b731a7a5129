package gormstore

import "time"

type leagueModel struct {
	ID                 string      `gorm:"primaryKey;size:64"`
	Name               string      `gorm:"size:200;not null"`
	TournamentID       string      `gorm:"size:64;index"`
	OwnerID            string      `gorm:"size:64;not null"`
	DraftStartDate     time.Time   `gorm:"index"`
	DraftCompleted     bool        `gorm:"not null;default:false"`
	DraftPaused        bool        `gorm:"not null;default:false"`
	CurrentTurnOwnerID string      `gorm:"size:64"`
	TurnDirection      string      `gorm:"size:16;not null;default:'forward'"`
	Version            int64       `gorm:"not null;default:0"`
	Teams              []teamModel `gorm:"foreignKey:LeagueID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (leagueModel) TableName() string { return "leagues" }

// teamModel.Position is the team's place in turn order.
type teamModel struct {
	ID        uint     `gorm:"primaryKey"`
	LeagueID  string   `gorm:"size:64;not null;uniqueIndex:idx_league_team_owner"`
	OwnerID   string   `gorm:"size:64;not null;uniqueIndex:idx_league_team_owner"`
	OwnerName string   `gorm:"size:100"`
	Position  int      `gorm:"not null"`
	Wishlist  []string `gorm:"serializer:json;type:text"`
	JoinedAt  time.Time
}

func (teamModel) TableName() string { return "league_teams" }

// The unique index on (league_id, player_id) is the last line of defence
// against a player landing on two rosters.
type pickModel struct {
	ID         uint   `gorm:"primaryKey"`
	LeagueID   string `gorm:"size:64;not null;uniqueIndex:idx_league_player"`
	PlayerID   string `gorm:"size:64;not null;uniqueIndex:idx_league_player"`
	OwnerID    string `gorm:"size:64;not null"`
	PickNumber int    `gorm:"not null"`
	Auto       bool   `gorm:"not null;default:false"`
	PickedAt   time.Time
}

func (pickModel) TableName() string { return "draft_picks" }
