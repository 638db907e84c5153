package provider

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/model"
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	runStatusSucceeded = "SUCCEEDED"
	runStatusFailed    = "FAILED"
	runStatusAborted   = "ABORTED"
	runStatusAborting  = "ABORTING"
	runStatusTimedOut  = "TIMED-OUT"
	runStatusTimingOut = "TIMING-OUT"
)

// errRunPending 任务仍在运行，轮询继续
var errRunPending = errors.New("scraper: run still pending")

// ScraperClient 异步抓取任务 API：提交任务、轮询状态、读取结果集。Token 只放在 Authorization 头里
type ScraperClient struct {
	http         *resty.Client
	limiter      *rate.Limiter
	actorID      string
	pollAttempts int
	pollInterval time.Duration
	now          func() time.Time
}

type scraperRunEnvelope struct {
	Data *scraperRun `json:"data"`
}

type scraperRun struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// scraperItem 不同 actor 版本的字段名不一致，全部按可选处理
type scraperItem struct {
	ID                 string  `json:"id"`
	IDStr              string  `json:"id_str"`
	NoResults          bool    `json:"noResults"`
	LikeCount          FlexInt `json:"likeCount"`
	FavoriteCount      FlexInt `json:"favorite_count"`
	Likes              FlexInt `json:"likes"`
	RetweetCount       FlexInt `json:"retweetCount"`
	RetweetCountSnake  FlexInt `json:"retweet_count"`
	Retweets           FlexInt `json:"retweets"`
	ReplyCount         FlexInt `json:"replyCount"`
	ReplyCountSnake    FlexInt `json:"reply_count"`
	Replies            FlexInt `json:"replies"`
	QuoteCount         FlexInt `json:"quoteCount"`
	QuoteCountSnake    FlexInt `json:"quote_count"`
	ViewCount          FlexInt `json:"viewCount"`
	ViewCountSnake     FlexInt `json:"view_count"`
	Views              FlexInt `json:"views"`
	BookmarkCount      FlexInt `json:"bookmarkCount"`
	BookmarkCountSnake FlexInt `json:"bookmark_count"`
}

func (it scraperItem) counters() model.Counters {
	return model.Counters{
		Impressions: firstOf(it.ViewCount, it.ViewCountSnake, it.Views),
		Likes:       firstOf(it.LikeCount, it.FavoriteCount, it.Likes),
		Reshares:    firstOf(it.RetweetCount, it.RetweetCountSnake, it.Retweets),
		Replies:     firstOf(it.ReplyCount, it.ReplyCountSnake, it.Replies),
		Quotes:      firstOf(it.QuoteCount, it.QuoteCountSnake),
		Bookmarks:   firstOf(it.BookmarkCount, it.BookmarkCountSnake),
	}
}

func NewScraperClient(cfg config.ScraperConfig, userAgent string) *ScraperClient {
	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = 15
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ScraperClient{
		http:         newRestyClient(cfg.BaseURL, cfg.Timeout, userAgent).SetHeader("Accept", "application/json"),
		limiter:      endpointLimiter(cfg.ProviderEndpoint),
		actorID:      cfg.ActorID,
		pollAttempts: attempts,
		pollInterval: interval,
		now:          time.Now,
	}
}

func (c *ScraperClient) Name() Name { return NameScraper }

func (c *ScraperClient) RequiresCredential() bool { return true }

func (c *ScraperClient) Supports(kind model.EntityKind) bool {
	return kind == model.EntityKindPost
}

func (c *ScraperClient) FetchEntityMetrics(ctx context.Context, ref Reference, cred *Credential) (*RawResult, error) {
	if cred == nil || cred.APIKey == "" {
		return nil, errors.Wrap(ErrTransient, "scraper: missing api token")
	}
	if ref.Kind != model.EntityKindPost {
		return nil, unsupportedKind(NameScraper, ref)
	}
	actor := c.actorID
	if cred.ActorID != "" {
		actor = cred.ActorID
	}

	if err := waitTurn(ctx, c.limiter, NameScraper); err != nil {
		return nil, err
	}
	run, err := c.startRun(ctx, actor, ref, cred.APIKey)
	if err != nil {
		return nil, err
	}

	run, err = c.waitRun(ctx, run, cred.APIKey)
	if err != nil {
		return nil, err
	}

	items, err := c.fetchItems(ctx, run.DefaultDatasetID, cred.APIKey)
	if err != nil {
		return nil, err
	}

	result := &RawResult{Provider: NameScraper, FetchedAt: c.now()}
	if item, ok := pickItem(items, ref.PostID); ok {
		result.Counters = item.counters()
	}
	return result, nil
}

func (c *ScraperClient) startRun(ctx context.Context, actor string, ref Reference, token string) (*scraperRun, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("actor", actor).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"tweetIDs": []string{ref.PostID},
			"maxItems": 1,
		}).
		Post("/v2/acts/{actor}/runs")
	if err != nil {
		return nil, transportError(NameScraper, err)
	}
	if err = classifyStatus(NameScraper, resp); err != nil {
		// 提交阶段 404 是 actor 不存在，不代表实体不存在
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrTransient, "scraper: actor %s unavailable", actor)
		}
		return nil, err
	}

	var env scraperRunEnvelope
	if err = decodeBody(NameScraper, resp.Body(), &env); err != nil {
		return nil, err
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "scraper: run id missing")
	}
	return env.Data, nil
}

// waitRun 有界轮询：最多 pollAttempts 次，每次间隔 pollInterval
func (c *ScraperClient) waitRun(ctx context.Context, run *scraperRun, token string) (*scraperRun, error) {
	if run.Status == runStatusSucceeded && run.DefaultDatasetID != "" {
		return run, nil
	}

	poll := func() (*scraperRun, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("run", run.ID).
			SetAuthToken(token).
			Get("/v2/actor-runs/{run}")
		if err != nil {
			return nil, transportError(NameScraper, err)
		}
		if err = classifyStatus(NameScraper, resp); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, backoff.Permanent(errors.Wrapf(ErrTransient, "scraper: run %s vanished", run.ID))
			}
			return nil, err
		}
		var env scraperRunEnvelope
		if err = decodeBody(NameScraper, resp.Body(), &env); err != nil {
			return nil, err
		}
		if env.Data == nil {
			return nil, errors.Wrap(ErrMalformedResponse, "scraper: run status missing")
		}

		switch env.Data.Status {
		case runStatusSucceeded:
			if env.Data.DefaultDatasetID == "" {
				env.Data.DefaultDatasetID = run.DefaultDatasetID
			}
			return env.Data, nil
		case runStatusFailed, runStatusAborted, runStatusAborting, runStatusTimedOut, runStatusTimingOut:
			return nil, backoff.Permanent(errors.Wrapf(ErrTransient, "scraper: run %s ended with %s", run.ID, env.Data.Status))
		default:
			return nil, errRunPending
		}
	}

	done, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxTries(uint(c.pollAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.DebugContext(ctx, "scraper run poll", "run_id", run.ID, "err", err, "next", next)
		}),
	)
	if err != nil {
		if errors.Is(err, errRunPending) {
			return nil, errors.Wrapf(ErrJobTimeout, "scraper: run %s after %d polls", run.ID, c.pollAttempts)
		}
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ErrTransient, "scraper: %v", ctx.Err())
		}
		return nil, err
	}
	if done.DefaultDatasetID == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "scraper: dataset id missing")
	}
	return done, nil
}

func (c *ScraperClient) fetchItems(ctx context.Context, datasetID, token string) ([]scraperItem, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("dataset", datasetID).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"clean":  "true",
			"format": "json",
		}).
		Get("/v2/datasets/{dataset}/items")
	if err != nil {
		return nil, transportError(NameScraper, err)
	}
	if err = classifyStatus(NameScraper, resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrTransient, "scraper: dataset %s unavailable", datasetID)
		}
		return nil, err
	}

	var items []scraperItem
	if err = decodeBody(NameScraper, resp.Body(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// pickItem 优先匹配 id，否则取第一条非空结果
func pickItem(items []scraperItem, postID string) (scraperItem, bool) {
	var fallback *scraperItem
	for i := range items {
		it := items[i]
		if it.NoResults {
			continue
		}
		if it.ID == postID || it.IDStr == postID {
			return it, true
		}
		if fallback == nil && it.ID == "" && it.IDStr == "" {
			fallback = &items[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return scraperItem{}, false
}
