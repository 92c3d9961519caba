// Package catalog looks up release metadata from MusicBrainz so a seller
// can pre-fill a listing instead of typing it out.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"waxtrade/internal/app/dto"
)

// ErrNoMatch is returned when the search finds no release.
var ErrNoMatch = errors.New("catalog: no matching release")

// Config defines MusicBrainz client settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client queries the MusicBrainz web service.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// Release is the subset of a MusicBrainz release used to pre-fill a listing.
type Release struct {
	MBID   string
	Title  string
	Artist string
	Label  string
	Year   int
}

// NewClient builds a catalog client. MusicBrainz requires a meaningful
// User-Agent, so one must be provided.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://musicbrainz.org/ws/2"
	}
	if cfg.UserAgent == "" {
		return nil, errors.New("catalog: user agent required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:      base,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

type releaseSearchResponse struct {
	Releases []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Date         string `json:"date"`
		ArtistCredit []struct {
			Name string `json:"name"`
		} `json:"artist-credit"`
		LabelInfo []struct {
			Label struct {
				Name string `json:"name"`
			} `json:"label"`
		} `json:"label-info"`
	} `json:"releases"`
}

// LookupRelease searches for the best-matching release by album name.
func (c *Client) LookupRelease(ctx context.Context, albumName string) (Release, error) {
	q := url.Values{}
	q.Set("query", albumName)
	q.Set("fmt", "json")
	q.Set("limit", "1")
	q.Set("inc", "artist-credits+labels+release-groups")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/release/?"+q.Encode(), nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Release{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("catalog: release search returned %d", resp.StatusCode)
	}

	var payload releaseSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Release{}, err
	}
	if len(payload.Releases) == 0 {
		return Release{}, ErrNoMatch
	}

	raw := payload.Releases[0]
	release := Release{MBID: raw.ID, Title: raw.Title}
	if len(raw.ArtistCredit) > 0 {
		release.Artist = raw.ArtistCredit[0].Name
	}
	if len(raw.LabelInfo) > 0 {
		release.Label = raw.LabelInfo[0].Label.Name
	}
	if len(raw.Date) >= 4 {
		if year, err := strconv.Atoi(raw.Date[:4]); err == nil {
			release.Year = year
		}
	}
	if c.logger != nil {
		c.logger.Debug("release lookup", "query", albumName, "mbid", release.MBID)
	}
	return release, nil
}

// Prefill maps a release onto a create-record request for editing.
func (r Release) Prefill() dto.CreateRecordRequest {
	return dto.CreateRecordRequest{
		Title:       r.Title,
		Artist:      r.Artist,
		Label:       r.Label,
		ReleaseYear: r.Year,
	}
}
