package httpapi

import (
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
	"github.com/riskibarqy/guildhall/internal/usecase"
)

type registerGuildRequest struct {
	Name    string   `json:"name" validate:"required,max=64"`
	Regions []string `json:"regions" validate:"required,min=1,max=7,dive,required"`
}

type createInvitationRequest struct {
	Type              string `json:"type" validate:"required,oneof=leader_transfer co_leader_add co_leader_replace manager_add roster_add"`
	TargetUserID      string `json:"target_user_id" validate:"required"`
	TargetDisplayName string `json:"target_display_name" validate:"omitempty,max=100"`
	Region            string `json:"region" validate:"required_if=Type roster_add"`
	Roster            string `json:"roster" validate:"required_if=Type roster_add"`
}

type respondInvitationRequest struct {
	Handle string `json:"handle" validate:"required"`
}

type rosterRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
	Region      string `json:"region" validate:"required"`
	Roster      string `json:"roster" validate:"required,oneof=main sub"`
}

type targetUserRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
}

type regionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

type memberDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	JoinedAt    string `json:"joined_at,omitempty"`
}

type regionDTO struct {
	Code       string   `json:"code"`
	Status     string   `json:"status"`
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	Elo        int      `json:"elo"`
	MainRoster []string `json:"main_roster"`
	SubRoster  []string `json:"sub_roster"`
}

type guildDTO struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	RegisteredBy string      `json:"registered_by"`
	Members      []memberDTO `json:"members"`
	Managers     []string    `json:"managers"`
	Regions      []regionDTO `json:"regions"`
	Version      int64       `json:"version"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

type invitationDTO struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	GuildID       string `json:"guild_id"`
	GuildName     string `json:"guild_name"`
	InviterUserID string `json:"inviter_user_id"`
	TargetUserID  string `json:"target_user_id"`
	Region        string `json:"region,omitempty"`
	Roster        string `json:"roster,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

type createdInvitationDTO struct {
	Invitation   invitationDTO `json:"invitation"`
	Handle       string        `json:"handle"`
	State        string        `json:"state"`
	DeliveredVia string        `json:"delivered_via,omitempty"`
}

type resultDTO struct {
	Outcome    string         `json:"outcome"`
	Message    string         `json:"message"`
	Guild      *guildDTO      `json:"guild,omitempty"`
	Invitation *invitationDTO `json:"invitation,omitempty"`
}

func guildToDTO(g guild.Guild) guildDTO {
	out := guildDTO{
		ID:           g.ID,
		TenantID:     g.TenantID,
		Name:         g.Name,
		Status:       string(g.Status),
		RegisteredBy: g.RegisteredBy,
		Members:      make([]memberDTO, 0, len(g.Members)),
		Managers:     append([]string{}, g.Managers...),
		Regions:      make([]regionDTO, 0, len(g.Regions)),
		Version:      g.Version,
		CreatedAt:    formatTime(g.CreatedAt),
		UpdatedAt:    formatTime(g.UpdatedAt),
	}
	for _, m := range g.Members {
		out.Members = append(out.Members, memberDTO{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			JoinedAt:    formatTime(m.JoinedAt),
		})
	}
	for _, r := range g.Regions {
		out.Regions = append(out.Regions, regionDTO{
			Code:       string(r.Code),
			Status:     string(r.Status),
			Wins:       r.Wins,
			Losses:     r.Losses,
			Elo:        r.Elo,
			MainRoster: append([]string{}, g.RosterFor(r.Code, guild.RosterMain)...),
			SubRoster:  append([]string{}, g.RosterFor(r.Code, guild.RosterSub)...),
		})
	}
	return out
}

func invitationToDTO(inv invitation.Invitation) invitationDTO {
	out := invitationDTO{
		ID:            inv.ID,
		Type:          string(inv.Type),
		GuildID:       inv.GuildID,
		GuildName:     inv.GuildName,
		InviterUserID: inv.InviterUserID,
		TargetUserID:  inv.TargetUserID,
		Region:        string(inv.Context.Region),
		Roster:        string(inv.Context.Roster),
	}
	if inv.ExpiresAt != nil {
		out.ExpiresAt = formatTime(*inv.ExpiresAt)
	}
	return out
}

func toResultDTO(res usecase.Result) resultDTO {
	out := resultDTO{Outcome: string(res.Outcome), Message: res.Message}
	if res.Guild.ID != "" {
		g := guildToDTO(res.Guild)
		out.Guild = &g
	}
	if res.Invitation != nil {
		inv := invitationToDTO(*res.Invitation)
		out.Invitation = &inv
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
