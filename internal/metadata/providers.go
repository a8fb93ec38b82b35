package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/fifosk/ebook-tools-sub003/internal/httpclient"
)

// getJSON fetches a URL and decodes the body. A non-200 status is an
// error; providers treat it as a miss upstream.
func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if client == nil {
		client = httpclient.Default()
	}
	body, resp, err := httpclient.DoAndRead(client, req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func yearOf(date string) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

// OpenLibrary needs no API key. ISBN queries are exact-ID matches.
type OpenLibrary struct {
	BaseURL string
	HTTP    *http.Client
}

func NewOpenLibrary() *OpenLibrary {
	return &OpenLibrary{BaseURL: "https://openlibrary.org"}
}

func (p *OpenLibrary) Name() SourceID              { return SourceOpenLibrary }
func (p *OpenLibrary) SupportedTypes() []MediaType { return []MediaType{TypeBook} }
func (p *OpenLibrary) Available() bool             { return true }

func (p *OpenLibrary) Lookup(ctx context.Context, q Query) (*Result, error) {
	params := url.Values{"limit": {"1"}}
	exact := false
	switch {
	case q.ISBN != "":
		params.Set("q", "isbn:"+q.ISBN)
		exact = true
	case q.Title != "":
		params.Set("title", q.Title)
		if q.Author != "" {
			params.Set("author", q.Author)
		}
	default:
		return nil, nil
	}

	var body struct {
		Docs []struct {
			Title            string   `json:"title"`
			FirstPublishYear int      `json:"first_publish_year"`
			AuthorName       []string `json:"author_name"`
			Subject          []string `json:"subject"`
			CoverID          int      `json:"cover_i"`
			ISBN             []string `json:"isbn"`
			Language         []string `json:"language"`
		} `json:"docs"`
	}
	if err := getJSON(ctx, p.HTTP, p.BaseURL+"/search.json?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	if len(body.Docs) == 0 {
		return nil, nil
	}
	doc := body.Docs[0]

	res := &Result{
		Title:      doc.Title,
		Type:       TypeBook,
		Year:       doc.FirstPublishYear,
		Genres:     doc.Subject,
		SourceIDs:  map[string]string{},
		Confidence: ConfidenceMedium,
	}
	if len(res.Genres) > genreCap {
		res.Genres = res.Genres[:genreCap]
	}
	if len(doc.AuthorName) > 0 {
		res.Author = doc.AuthorName[0]
	}
	if len(doc.Language) > 0 {
		res.Language = doc.Language[0]
	}
	if len(doc.ISBN) > 0 {
		res.SourceIDs["isbn"] = doc.ISBN[0]
	}
	if doc.CoverID != 0 {
		res.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverID)
	}
	if exact {
		res.Confidence = ConfidenceHigh
	}
	return res, nil
}

// GoogleBooks needs no API key for basic volume search.
type GoogleBooks struct {
	BaseURL string
	HTTP    *http.Client
}

func NewGoogleBooks() *GoogleBooks {
	return &GoogleBooks{BaseURL: "https://www.googleapis.com/books/v1"}
}

func (p *GoogleBooks) Name() SourceID              { return SourceGoogleBooks }
func (p *GoogleBooks) SupportedTypes() []MediaType { return []MediaType{TypeBook} }
func (p *GoogleBooks) Available() bool             { return true }

func (p *GoogleBooks) Lookup(ctx context.Context, q Query) (*Result, error) {
	var terms []string
	exact := false
	switch {
	case q.ISBN != "":
		terms = append(terms, "isbn:"+q.ISBN)
		exact = true
	case q.Title != "":
		terms = append(terms, "intitle:"+q.Title)
		if q.Author != "" {
			terms = append(terms, "inauthor:"+q.Author)
		}
	default:
		return nil, nil
	}
	params := url.Values{"q": {strings.Join(terms, "+")}, "maxResults": {"1"}}

	var body struct {
		Items []struct {
			VolumeInfo struct {
				Title               string   `json:"title"`
				Authors             []string `json:"authors"`
				PublishedDate       string   `json:"publishedDate"`
				Description         string   `json:"description"`
				Categories          []string `json:"categories"`
				Language            string   `json:"language"`
				IndustryIdentifiers []struct {
					Type       string `json:"type"`
					Identifier string `json:"identifier"`
				} `json:"industryIdentifiers"`
				ImageLinks struct {
					Thumbnail string `json:"thumbnail"`
				} `json:"imageLinks"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := getJSON(ctx, p.HTTP, p.BaseURL+"/volumes?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	if len(body.Items) == 0 {
		return nil, nil
	}
	info := body.Items[0].VolumeInfo

	res := &Result{
		Title:      info.Title,
		Type:       TypeBook,
		Year:       yearOf(info.PublishedDate),
		Genres:     info.Categories,
		Summary:    info.Description,
		CoverURL:   info.ImageLinks.Thumbnail,
		Language:   info.Language,
		SourceIDs:  map[string]string{},
		Confidence: ConfidenceMedium,
	}
	if len(info.Authors) > 0 {
		res.Author = info.Authors[0]
	}
	for _, id := range info.IndustryIdentifiers {
		if strings.HasPrefix(id.Type, "ISBN") {
			res.SourceIDs["isbn"] = id.Identifier
			break
		}
	}
	if exact {
		res.Confidence = ConfidenceHigh
	}
	return res, nil
}

// Wikipedia serves as the low-confidence catch-all.
type Wikipedia struct {
	BaseURL string
	HTTP    *http.Client
}

func NewWikipedia() *Wikipedia {
	return &Wikipedia{BaseURL: "https://en.wikipedia.org/api/rest_v1"}
}

func (p *Wikipedia) Name() SourceID { return SourceWikipedia }
func (p *Wikipedia) SupportedTypes() []MediaType {
	return []MediaType{TypeBook, TypeMovie, TypeTVSeries}
}
func (p *Wikipedia) Available() bool { return true }

func (p *Wikipedia) Lookup(ctx context.Context, q Query) (*Result, error) {
	if q.Title == "" {
		return nil, nil
	}
	page := url.PathEscape(strings.ReplaceAll(q.Title, " ", "_"))

	var body struct {
		Title     string `json:"title"`
		Extract   string `json:"extract"`
		Thumbnail struct {
			Source string `json:"source"`
		} `json:"thumbnail"`
	}
	if err := getJSON(ctx, p.HTTP, p.BaseURL+"/page/summary/"+page, &body); err != nil {
		return nil, err
	}
	if body.Extract == "" {
		return nil, nil
	}
	return &Result{
		Title:      body.Title,
		Type:       q.MediaType,
		Summary:    body.Extract,
		CoverURL:   body.Thumbnail.Source,
		Confidence: ConfidenceLow,
	}, nil
}

// TMDB requires an API key.
type TMDB struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewTMDB(apiKey string) *TMDB {
	return &TMDB{BaseURL: "https://api.themoviedb.org/3", APIKey: apiKey}
}

func (p *TMDB) Name() SourceID { return SourceTMDB }
func (p *TMDB) SupportedTypes() []MediaType {
	return []MediaType{TypeMovie, TypeTVSeries, TypeTVEpisode}
}
func (p *TMDB) Available() bool { return p.APIKey != "" }

type tmdbEntry struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

func (p *TMDB) Lookup(ctx context.Context, q Query) (*Result, error) {
	kind := "movie"
	if q.MediaType == TypeTVSeries || q.MediaType == TypeTVEpisode {
		kind = "tv"
	}

	var entry tmdbEntry
	exact := false
	if q.TMDBID != "" {
		if err := getJSON(ctx, p.HTTP,
			fmt.Sprintf("%s/%s/%s?api_key=%s", p.BaseURL, kind, url.PathEscape(q.TMDBID), p.APIKey), &entry); err != nil {
			return nil, err
		}
		exact = true
	} else {
		title := q.Title
		if kind == "tv" && q.SeriesName != "" {
			title = q.SeriesName
		}
		if title == "" {
			return nil, nil
		}
		params := url.Values{"api_key": {p.APIKey}, "query": {title}}
		if q.Year != 0 {
			params.Set("year", strconv.Itoa(q.Year))
		}
		var body struct {
			Results []tmdbEntry `json:"results"`
		}
		if err := getJSON(ctx, p.HTTP, p.BaseURL+"/search/"+kind+"?"+params.Encode(), &body); err != nil {
			return nil, err
		}
		if len(body.Results) == 0 {
			return nil, nil
		}
		entry = body.Results[0]
	}

	title := entry.Title
	if title == "" {
		title = entry.Name
	}
	date := entry.ReleaseDate
	if date == "" {
		date = entry.FirstAirDate
	}
	res := &Result{
		Title:      title,
		Type:       q.MediaType,
		Year:       yearOf(date),
		Summary:    entry.Overview,
		Rating:     entry.VoteAverage,
		Votes:      entry.VoteCount,
		SourceIDs:  map[string]string{"tmdb": strconv.Itoa(entry.ID)},
		Confidence: ConfidenceMedium,
	}
	if entry.PosterPath != "" {
		res.CoverURL = "https://image.tmdb.org/t/p/w500" + entry.PosterPath
	}
	if exact {
		res.Confidence = ConfidenceHigh
	}
	return res, nil
}

// OMDb requires an API key.
type OMDb struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewOMDb(apiKey string) *OMDb {
	return &OMDb{BaseURL: "https://www.omdbapi.com", APIKey: apiKey}
}

func (p *OMDb) Name() SourceID { return SourceOMDb }
func (p *OMDb) SupportedTypes() []MediaType {
	return []MediaType{TypeMovie, TypeTVSeries, TypeTVEpisode}
}
func (p *OMDb) Available() bool { return p.APIKey != "" }

func (p *OMDb) Lookup(ctx context.Context, q Query) (*Result, error) {
	params := url.Values{"apikey": {p.APIKey}, "plot": {"short"}}
	exact := false
	switch {
	case q.IMDBID != "":
		params.Set("i", q.IMDBID)
		exact = true
	case q.Title != "":
		params.Set("t", q.Title)
		if q.Year != 0 {
			params.Set("y", strconv.Itoa(q.Year))
		}
	default:
		return nil, nil
	}

	var body struct {
		Response  string `json:"Response"`
		Title     string `json:"Title"`
		Year      string `json:"Year"`
		Genre     string `json:"Genre"`
		Plot      string `json:"Plot"`
		Poster    string `json:"Poster"`
		Runtime   string `json:"Runtime"`
		IMDBID    string `json:"imdbID"`
		Rating    string `json:"imdbRating"`
		Votes     string `json:"imdbVotes"`
		Language  string `json:"Language"`
	}
	if err := getJSON(ctx, p.HTTP, p.BaseURL+"/?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	if body.Response != "True" {
		return nil, nil
	}

	res := &Result{
		Title:      body.Title,
		Type:       q.MediaType,
		Year:       yearOf(body.Year),
		Summary:    body.Plot,
		Language:   body.Language,
		SourceIDs:  map[string]string{"imdb": body.IMDBID},
		Confidence: ConfidenceMedium,
	}
	if body.Poster != "" && body.Poster != "N/A" {
		res.CoverURL = body.Poster
	}
	for _, g := range strings.Split(body.Genre, ",") {
		if g = strings.TrimSpace(g); g != "" && g != "N/A" {
			res.Genres = append(res.Genres, g)
		}
	}
	if r, err := strconv.ParseFloat(body.Rating, 64); err == nil {
		res.Rating = r
	}
	if v, err := strconv.Atoi(strings.ReplaceAll(body.Votes, ",", "")); err == nil {
		res.Votes = v
	}
	if m := runtimeMinutes(body.Runtime); m > 0 {
		res.RuntimeMinutes = m
	}
	if exact {
		res.Confidence = ConfidenceHigh
	}
	return res, nil
}

var runtimePattern = regexp.MustCompile(`(\d+)\s*min`)

func runtimeMinutes(s string) int {
	m := runtimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// TVMaze needs no API key.
type TVMaze struct {
	BaseURL string
	HTTP    *http.Client
}

func NewTVMaze() *TVMaze {
	return &TVMaze{BaseURL: "https://api.tvmaze.com"}
}

func (p *TVMaze) Name() SourceID { return SourceTVMaze }
func (p *TVMaze) SupportedTypes() []MediaType {
	return []MediaType{TypeTVSeries, TypeTVEpisode}
}
func (p *TVMaze) Available() bool { return true }

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func (p *TVMaze) Lookup(ctx context.Context, q Query) (*Result, error) {
	title := q.SeriesName
	if title == "" {
		title = q.Title
	}
	if title == "" {
		return nil, nil
	}

	var body struct {
		Name      string   `json:"name"`
		Premiered string   `json:"premiered"`
		Genres    []string `json:"genres"`
		Summary   string   `json:"summary"`
		Image     struct {
			Original string `json:"original"`
		} `json:"image"`
		Externals struct {
			IMDB string `json:"imdb"`
		} `json:"externals"`
	}
	reqURL := p.BaseURL + "/singlesearch/shows?q=" + url.QueryEscape(title)
	if err := getJSON(ctx, p.HTTP, reqURL, &body); err != nil {
		return nil, err
	}
	if body.Name == "" {
		return nil, nil
	}

	res := &Result{
		Title:      body.Name,
		Type:       q.MediaType,
		Year:       yearOf(body.Premiered),
		Genres:     body.Genres,
		Summary:    strings.TrimSpace(htmlTagPattern.ReplaceAllString(body.Summary, "")),
		CoverURL:   body.Image.Original,
		SourceIDs:  map[string]string{},
		Confidence: ConfidenceMedium,
	}
	if body.Externals.IMDB != "" {
		res.SourceIDs["imdb"] = body.Externals.IMDB
	}
	return res, nil
}
