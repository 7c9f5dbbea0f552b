package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/config"
	"github.com/airstudent2/Tournament-200-26/internal/identity"
	"github.com/airstudent2/Tournament-200-26/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const jwtIssuer = "tourney"

// join-bot registers N users and fires their joins at one tournament at the
// same time, then prints how many of each outcome came back. With more users
// than slots exactly max_slots joins should succeed.
func main() {
	_ = godotenv.Load()
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	if cfg.TournamentID == "" || cfg.JWTSecret == "" {
		log.Fatal().Msg("BOT_TOURNAMENT_ID and JWT_SECRET are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	client := &http.Client{Timeout: cfg.Timeout}

	tokens := make([]string, cfg.Users)
	for i := range tokens {
		uid := fmt.Sprintf("%s-%03d", cfg.UserPrefix, i)
		tok, err := identity.IssueToken(cfg.JWTSecret, jwtIssuer, uid, time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token failed")
		}
		tokens[i] = tok
		profile := map[string]any{
			"display_name": uid,
			"phone":        fmt.Sprintf("+1555%07d", i),
			"game_handle":  uid + "#bot",
		}
		if _, err := call(ctx, client, http.MethodPut, cfg.BaseURL+"/api/profile", tok, profile); err != nil {
			log.Fatal().Err(err).Str("uid", uid).Msg("profile setup failed")
		}
	}

	var (
		mu    sync.Mutex
		tally = map[string]int{}
	)
	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	joinURL := cfg.BaseURL + "/api/tournaments/" + cfg.TournamentID + "/join"
	for _, tok := range tokens {
		tok := tok
		g.Go(func() error {
			<-start
			outcome, err := call(gctx, client, http.MethodPost, joinURL, tok, nil)
			if err != nil {
				outcome = "transport_error"
			}
			mu.Lock()
			tally[outcome]++
			mu.Unlock()
			return nil
		})
	}
	began := time.Now()
	close(start)
	_ = g.Wait()

	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "join outcomes for %s (%d users, %s):\n", cfg.TournamentID, cfg.Users, time.Since(began).Round(time.Millisecond))
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-22s %d\n", k, tally[k])
	}
	fmt.Print(b.String())
}

// call returns "ok" for a 2xx response and the error code otherwise.
func call(ctx context.Context, client *http.Client, method, url, token string, body any) (string, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return "", err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return "ok", nil
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Error == "" {
		return "", errors.New(resp.Status)
	}
	return out.Error, nil
}
