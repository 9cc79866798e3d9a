// Package model defines domain entities used by services and repositories.
package model

import (
	"regexp"
	"time"
)

// User is a registered account. Name doubles as the login secret.
type User struct {
	ID               int64   // PK, assigned by the store
	Name             string  // compared verbatim on login
	Email            string  `validate:"required"`
	Phone            *string // optional
	Address          *string // unique together with Email
	RegistrationDate *string // free-form, e.g. "2024-05-01"
}

// WishlistItem is a catalog item saved by a user. Display fields are copied
// from the catalog item at the time it was added.
type WishlistItem struct {
	UserID         int64  // FK -> users.id, cascades on delete
	ExternalItemID string // catalog item link
	Title          *string
	ImageURL       *string
	LowPrice       *string
	OriginalLink   *string
	AddedAt        time.Time
}

// CatalogItem is a product returned by the remote search endpoint.
type CatalogItem struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Image        string `json:"image"`
	LowPrice     string `json:"lprice"`
	HighPrice    string `json:"hprice"`
	OriginalLink string `json:"originallink"`
	MallName     string `json:"mallName"`
	ProductID    string `json:"productId"`
	Brand        string `json:"brand"`
	Category1    string `json:"category1"`
}

// Page is a single page of search results plus pagination metadata.
type Page struct {
	Items    []CatalogItem
	Total    int
	PageSize int
}

// LoginState is the login state machine.
type LoginState int

// Login states.
const (
	LoginIdle LoginState = iota
	LoginLoading
	LoginSuccess
	LoginErrorUserNotFound
	LoginErrorInvalidPassword
	LoginErrorUnknown
)

func (s LoginState) String() string {
	switch s {
	case LoginIdle:
		return "IDLE"
	case LoginLoading:
		return "LOADING"
	case LoginSuccess:
		return "SUCCESS"
	case LoginErrorUserNotFound:
		return "ERROR_USER_NOT_FOUND"
	case LoginErrorInvalidPassword:
		return "ERROR_INVALID_PASSWORD"
	case LoginErrorUnknown:
		return "ERROR_UNKNOWN"
	}
	return "UNKNOWN"
}

// LoadState governs fetch eligibility for the current query.
type LoadState int

// Load states.
const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadError
	LoadReachedEnd
)

func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "IDLE"
	case LoadLoading:
		return "LOADING"
	case LoadError:
		return "ERROR"
	case LoadReachedEnd:
		return "REACHED_END"
	}
	return "UNKNOWN"
}

var markup = regexp.MustCompile(`<.*?>`)

// StripTags removes inline markup such as <b>...</b> from remote text.
func StripTags(s string) string { return markup.ReplaceAllString(s, "") }
