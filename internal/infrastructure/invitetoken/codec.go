package invitetoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
)

const issuer = "guildhall"

var errMissingSecret = errors.New("invite token secret is required")

type claims struct {
	jwt.RegisteredClaims
	Type             string `json:"typ"`
	TenantID         string `json:"tid"`
	GuildID          string `json:"gid"`
	GuildName        string `json:"gname,omitempty"`
	InviterUserID    string `json:"inviter"`
	TargetName       string `json:"tname,omitempty"`
	PreviousLeaderID string `json:"prev_leader,omitempty"`
	OldHolderID      string `json:"old_holder,omitempty"`
	Region           string `json:"region,omitempty"`
	Roster           string `json:"roster,omitempty"`
}

// Codec signs invitations into HS256 JWT handles. The handle is the only place an
// invitation lives, so the signature is what stops a target from forging one.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

func (c *Codec) Encode(inv invitation.Invitation) (invitation.Handle, error) {
	registered := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  inv.TargetUserID,
		ID:       inv.ID,
		IssuedAt: jwt.NewNumericDate(inv.CreatedAt),
	}
	if inv.ExpiresAt != nil {
		registered.ExpiresAt = jwt.NewNumericDate(*inv.ExpiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: registered,
		Type:             string(inv.Type),
		TenantID:         inv.TenantID,
		GuildID:          inv.GuildID,
		GuildName:        inv.GuildName,
		InviterUserID:    inv.InviterUserID,
		TargetName:       inv.TargetName,
		PreviousLeaderID: inv.Context.PreviousLeaderID,
		OldHolderID:      inv.Context.OldHolderID,
		Region:           string(inv.Context.Region),
		Roster:           string(inv.Context.Roster),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign invitation handle: %w", err)
	}
	return invitation.Handle(signed), nil
}

func (c *Codec) Decode(handle invitation.Handle) (invitation.Invitation, error) {
	raw := strings.TrimSpace(string(handle))
	if raw == "" {
		return invitation.Invitation{}, fmt.Errorf("%w: empty handle", invitation.ErrInvalidHandle)
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return invitation.Invitation{}, fmt.Errorf("%w: %v", invitation.ErrExpiredHandle, err)
		}
		return invitation.Invitation{}, fmt.Errorf("%w: %v", invitation.ErrInvalidHandle, err)
	}

	typ, ok := invitation.ParseType(parsed.Type)
	if !ok || parsed.ID == "" || parsed.GuildID == "" || parsed.Subject == "" {
		return invitation.Invitation{}, fmt.Errorf("%w: incomplete claims", invitation.ErrInvalidHandle)
	}

	inv := invitation.Invitation{
		ID:            parsed.ID,
		Type:          typ,
		TenantID:      parsed.TenantID,
		GuildID:       parsed.GuildID,
		GuildName:     parsed.GuildName,
		InviterUserID: parsed.InviterUserID,
		TargetUserID:  parsed.Subject,
		TargetName:    parsed.TargetName,
		Context: invitation.Context{
			PreviousLeaderID: parsed.PreviousLeaderID,
			OldHolderID:      parsed.OldHolderID,
			Region:           guild.RegionCode(parsed.Region),
			Roster:           guild.RosterKind(parsed.Roster),
		},
	}
	if parsed.IssuedAt != nil {
		inv.CreatedAt = parsed.IssuedAt.Time.UTC()
	}
	if parsed.ExpiresAt != nil {
		exp := parsed.ExpiresAt.Time.UTC()
		inv.ExpiresAt = &exp
	}
	return inv, nil
}
