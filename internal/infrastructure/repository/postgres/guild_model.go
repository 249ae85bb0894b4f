package postgres

import (
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/lib/pq"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

const guildTable = "guilds"

type guildTableModel struct {
	ID           int64          `db:"id"`
	PublicID     string         `db:"public_id"`
	TenantID     string         `db:"tenant_id"`
	Name         string         `db:"name"`
	Status       string         `db:"status"`
	RegisteredBy string         `db:"registered_by"`
	Document     string         `db:"document"`
	OccupantIDs  pq.StringArray `db:"occupant_ids"`
	Version      int64          `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	DeletedAt    *time.Time     `db:"deleted_at"`
}

type guildInsertModel struct {
	PublicID     string         `db:"public_id"`
	TenantID     string         `db:"tenant_id"`
	Name         string         `db:"name"`
	Status       string         `db:"status"`
	RegisteredBy string         `db:"registered_by"`
	Document     string         `db:"document"`
	OccupantIDs  pq.StringArray `db:"occupant_ids"`
	Version      int64          `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// guildDocument is the JSONB body of a guild row. Membership lives in one column so
// a single row lock covers every list an invariant spans.
type guildDocument struct {
	Members    []memberDocument `json:"members"`
	Managers   []string         `json:"managers,omitempty"`
	Regions    []regionDocument `json:"regions"`
	MainRoster []string         `json:"main_roster,omitempty"`
	SubRoster  []string         `json:"sub_roster,omitempty"`
}

type memberDocument struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

type regionDocument struct {
	Code       string   `json:"code"`
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	Elo        int      `json:"elo"`
	Status     string   `json:"status"`
	MainRoster []string `json:"main_roster,omitempty"`
	SubRoster  []string `json:"sub_roster,omitempty"`
}

func encodeGuildDocument(g guild.Guild) (string, error) {
	doc := guildDocument{
		Members:    make([]memberDocument, 0, len(g.Members)),
		Managers:   g.Managers,
		Regions:    make([]regionDocument, 0, len(g.Regions)),
		MainRoster: g.MainRoster,
		SubRoster:  g.SubRoster,
	}
	for _, m := range g.Members {
		doc.Members = append(doc.Members, memberDocument{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			JoinedAt:    m.JoinedAt.UTC(),
		})
	}
	for _, r := range g.Regions {
		doc.Regions = append(doc.Regions, regionDocument{
			Code:       string(r.Code),
			Wins:       r.Wins,
			Losses:     r.Losses,
			Elo:        r.Elo,
			Status:     string(r.Status),
			MainRoster: r.MainRoster,
			SubRoster:  r.SubRoster,
		})
	}

	encoded, err := sonic.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode guild document: %w", err)
	}
	return string(encoded), nil
}

func guildFromRow(row guildTableModel) (guild.Guild, error) {
	var doc guildDocument
	if row.Document != "" {
		if err := sonic.UnmarshalString(row.Document, &doc); err != nil {
			return guild.Guild{}, fmt.Errorf("decode guild document %s: %w", row.PublicID, err)
		}
	}

	g := guild.Guild{
		ID:           row.PublicID,
		TenantID:     row.TenantID,
		Name:         row.Name,
		Status:       guild.Status(row.Status),
		RegisteredBy: row.RegisteredBy,
		Members:      make([]guild.Member, 0, len(doc.Members)),
		Managers:     doc.Managers,
		Regions:      make([]guild.Region, 0, len(doc.Regions)),
		MainRoster:   doc.MainRoster,
		SubRoster:    doc.SubRoster,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	for _, m := range doc.Members {
		g.Members = append(g.Members, guild.Member{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        guild.Role(m.Role),
			JoinedAt:    m.JoinedAt,
		})
	}
	for _, r := range doc.Regions {
		g.Regions = append(g.Regions, guild.Region{
			Code:       guild.RegionCode(r.Code),
			Wins:       r.Wins,
			Losses:     r.Losses,
			Elo:        r.Elo,
			Status:     guild.Status(r.Status),
			MainRoster: r.MainRoster,
			SubRoster:  r.SubRoster,
		})
	}
	return g, nil
}

func guildInsertFromDomain(g guild.Guild) (guildInsertModel, error) {
	doc, err := encodeGuildDocument(g)
	if err != nil {
		return guildInsertModel{}, err
	}
	return guildInsertModel{
		PublicID:     g.ID,
		TenantID:     g.TenantID,
		Name:         g.Name,
		Status:       string(g.Status),
		RegisteredBy: g.RegisteredBy,
		Document:     doc,
		OccupantIDs:  pq.StringArray(g.OccupantIDs()),
		Version:      g.Version,
		CreatedAt:    g.CreatedAt.UTC(),
		UpdatedAt:    g.UpdatedAt.UTC(),
	}, nil
}
