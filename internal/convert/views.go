// Package convert maps domain values to the JSON shapes served over HTTP.
package convert

import (
	"time"

	"github.com/fortivault/fortivault/internal/breach"
	"github.com/fortivault/fortivault/internal/model"
)

// UserView is the public shape of a user. The master password hash has no field here.
type UserView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// CredentialView is a decrypted credential.
type CredentialView struct {
	ID         string    `json:"id"`
	Website    string    `json:"website"`
	WebsiteURL string    `json:"websiteUrl,omitempty"`
	Username   string    `json:"username"`
	Password   string    `json:"password"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserSummaryView is one admin listing row.
type UserSummaryView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          model.Role `json:"role"`
	CreatedAt     time.Time  `json:"createdAt"`
	PasswordCount int        `json:"passwordCount"`
}

// StatsView carries vault-wide counters.
type StatsView struct {
	TotalUsers     int `json:"totalUsers"`
	TotalPasswords int `json:"totalPasswords"`
}

// PasswordReportView is the breach lookup result.
type PasswordReportView struct {
	Breached   bool `json:"breached"`
	Count      int  `json:"count"`
	Unverified bool `json:"unverified"`
}

// ThreatView is a single reputation match.
type ThreatView struct {
	ThreatType   string `json:"threatType"`
	PlatformType string `json:"platformType"`
	URL          string `json:"url"`
}

// URLReportView is the reputation lookup result.
type URLReportView struct {
	Safe       bool         `json:"safe"`
	Threats    []ThreatView `json:"threats"`
	Unverified bool         `json:"unverified"`
}

// ScreeningView reports what the breach gate said about a credential being stored.
// URL is nil when the credential has no website URL.
type ScreeningView struct {
	Password PasswordReportView `json:"password"`
	URL      *URLReportView     `json:"url,omitempty"`
}

// ToUserView renders a user without its password hash.
func ToUserView(u model.User) UserView {
	return UserView{ID: u.ID.String(), Name: u.Name, Email: u.Email, Role: u.Role}
}

// ToCredentialView renders a decrypted credential.
func ToCredentialView(c model.Credential) CredentialView {
	return CredentialView{
		ID:         c.ID.String(),
		Website:    c.Website,
		WebsiteURL: c.WebsiteURL,
		Username:   c.Username,
		Password:   c.Password,
		CreatedAt:  c.CreatedAt,
	}
}

// ToCredentialViews never returns nil so empty vaults encode as [].
func ToCredentialViews(cs []model.Credential) []CredentialView {
	out := make([]CredentialView, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToCredentialView(c))
	}
	return out
}

// ToUserSummaryViews renders the admin user listing; never nil.
func ToUserSummaryViews(ss []model.UserSummary) []UserSummaryView {
	out := make([]UserSummaryView, 0, len(ss))
	for _, s := range ss {
		out = append(out, UserSummaryView{
			ID:            s.ID.String(),
			Name:          s.Name,
			Email:         s.Email,
			Role:          s.Role,
			CreatedAt:     s.CreatedAt,
			PasswordCount: s.PasswordCount,
		})
	}
	return out
}

// ToStatsView renders system totals.
func ToStatsView(s model.Stats) StatsView {
	return StatsView{TotalUsers: s.TotalUsers, TotalPasswords: s.TotalPasswords}
}

// ToPasswordReportView renders a breach lookup result.
func ToPasswordReportView(r breach.PasswordReport) PasswordReportView {
	return PasswordReportView{Breached: r.Breached, Count: r.Count, Unverified: r.Unverified}
}

// ToURLReportView renders a threat-match result; Threats is never nil.
func ToURLReportView(r breach.URLReport) URLReportView {
	threats := make([]ThreatView, 0, len(r.Threats))
	for _, t := range r.Threats {
		threats = append(threats, ThreatView{ThreatType: t.ThreatType, PlatformType: t.PlatformType, URL: t.URL})
	}
	return URLReportView{Safe: r.Safe, Threats: threats, Unverified: r.Unverified}
}
