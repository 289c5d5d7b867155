package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"mailscout/internal/confidence"
	jwttoken "mailscout/internal/jwt_token"
	"mailscout/internal/knowledge"
	"mailscout/internal/knowledge/store"
	"mailscout/internal/pattern"
	"mailscout/internal/platform/config"
	"mailscout/internal/platform/logger"
)

type CLISuite struct {
	suite.Suite
	dir string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.dir = s.T().TempDir()
	cfgFile = ""
	for _, k := range []string{
		"HUNTER_API_KEY", "NEVERBOUNCE_API_KEY", "SERPAPI_KEY",
		"MAILSCOUT_PROVIDERS_HUNTER_API_KEY", "MAILSCOUT_PROVIDERS_NEVERBOUNCE_API_KEY", "MAILSCOUT_PROVIDERS_SERPAPI_API_KEY",
		"MAILSCOUT_WEBHOOK_JWT_SECRET", "MAILSCOUT_KAFKA_BROKERS",
	} {
		s.T().Setenv(k, "")
	}
	s.T().Setenv("MAILSCOUT_LOGGING_LEVEL", "error")
}

func (s *CLISuite) execute(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (s *CLISuite) writeContacts(body string) string {
	path := filepath.Join(s.dir, "contacts.csv")
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (s *CLISuite) readOutput(path string) [][]string {
	f, err := os.Open(path)
	s.Require().NoError(err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	s.Require().NoError(err)
	return rows
}

func (s *CLISuite) TestResolveWithoutProvidersFallsBack() {
	in := s.writeContacts("first_name,last_name,domain\nJane,Doe,example.com\n,,\nDr. John Smith PhD,,\n")
	out := filepath.Join(s.dir, "out.csv")

	_, err := s.execute("resolve", in, "-o", out, "--backend", "memory", "--no-progress")
	s.Require().NoError(err)

	rows := s.readOutput(out)
	s.Require().Len(rows, 2, "blank row ignored, row without domain skipped")
	s.Equal([]string{"id", "first_name", "last_name", "domain", "email", "pattern", "confidence", "verified", "resolution"}, rows[0])
	s.Equal([]string{"2", "Jane", "Doe", "example.com", "jane.doe@example.com", "first.last", "0.000", "false", "unverified"}, rows[1])
}

func (s *CLISuite) TestResolveUsesKnownPattern() {
	dbPath := filepath.Join(s.dir, "patterns.db")
	backend, err := store.NewSQLiteStore(context.Background(), dbPath)
	s.Require().NoError(err)
	ks := knowledge.New(backend, confidence.Default(), logger.Discard())
	_, err = ks.Record(context.Background(), "acme.io", pattern.FLast, confidence.SourceValidation, 5)
	s.Require().NoError(err)
	s.Require().NoError(ks.Close())

	s.T().Setenv("MAILSCOUT_KNOWLEDGE_SQLITE_PATH", dbPath)
	in := s.writeContacts("id,full_name,domain\nc-7,Ada Lovelace,acme.io\n")

	stdout, err := s.execute("resolve", in, "--backend", "sqlite", "--no-progress")
	s.Require().NoError(err)

	rows, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("c-7", rows[1][0])
	s.Equal("alovelace@acme.io", rows[1][4])
	s.Equal("flast", rows[1][5])
	s.Equal("true", rows[1][7])
	s.Equal("verified", rows[1][8])
}

func (s *CLISuite) TestResolveRejectsBadInput() {
	s.Run("missing file", func() {
		_, err := s.execute("resolve", filepath.Join(s.dir, "nope.csv"), "--backend", "memory", "--no-progress")
		s.ErrorContains(err, "open contacts")
	})

	s.Run("missing columns", func() {
		in := s.writeContacts("name,company\nJane,Acme\n")
		_, err := s.execute("resolve", in, "--backend", "memory", "--no-progress")
		s.ErrorContains(err, "read contacts")
	})

	s.Run("invalid threshold", func() {
		in := s.writeContacts("first_name,last_name,domain\nJane,Doe,example.com\n")
		_, err := s.execute("resolve", in, "--backend", "memory", "--threshold", "1.5")
		s.ErrorContains(err, "pipeline.threshold")
	})
}

func (s *CLISuite) TestToken() {
	s.Run("requires a secret", func() {
		_, err := s.execute("token")
		s.ErrorContains(err, "jwt_secret")
	})

	s.Run("mints a token the webhook accepts", func() {
		s.T().Setenv("MAILSCOUT_WEBHOOK_JWT_SECRET", "test-secret")
		stdout, err := s.execute("token", "--subject", "signalhire")
		s.Require().NoError(err)

		p, err := jwttoken.NewJWTService("test-secret").ValidateToken(strings.TrimSpace(stdout))
		s.Require().NoError(err)
		s.Equal("signalhire", p.Subject)
	})
}

func (s *CLISuite) TestLearnSeedsKnowledgeStore() {
	dbPath := filepath.Join(s.dir, "patterns.db")
	s.T().Setenv("MAILSCOUT_KNOWLEDGE_SQLITE_PATH", dbPath)
	known := filepath.Join(s.dir, "known.csv")
	s.Require().NoError(os.WriteFile(known, []byte(
		"first_name,last_name,email\n"+
			"Jane,Doe,jdoe@acme.io\n"+
			"John,Smith,jsmith@acme.io\n"+
			"Ada,Lovelace,ada.lovelace@acme.io\n"+
			"Grace,Hopper,grace.hopper@navy.mil\n"), 0o600))

	stdout, err := s.execute("learn", known, "--backend", "sqlite")
	s.Require().NoError(err)

	var out struct {
		Learned   int `json:"learned"`
		Ambiguous int `json:"ambiguous"`
		Patterns  []struct {
			Domain  string `json:"domain"`
			Pattern string `json:"pattern"`
			Samples int    `json:"samples"`
		} `json:"patterns"`
	}
	s.Require().NoError(json.Unmarshal([]byte(stdout), &out))
	s.Equal(1, out.Learned)
	s.Equal(1, out.Ambiguous)
	s.Require().Len(out.Patterns, 1)
	s.Equal("acme.io", out.Patterns[0].Domain)
	s.Equal("flast", out.Patterns[0].Pattern)
	s.Equal(2, out.Patterns[0].Samples)

	backend, err := store.NewSQLiteStore(context.Background(), dbPath)
	s.Require().NoError(err)
	ks := knowledge.New(backend, confidence.Default(), logger.Discard())
	defer ks.Close()
	recs, err := ks.Get(context.Background(), "acme.io")
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(pattern.FLast, recs[0].Pattern)
	s.Equal(confidence.SourceValidation, recs[0].Source)
}

func (s *CLISuite) TestLearnRejectsBadInput() {
	s.Run("missing columns", func() {
		known := filepath.Join(s.dir, "known.csv")
		s.Require().NoError(os.WriteFile(known, []byte("name,company\nJane,Acme\n"), 0o600))
		_, err := s.execute("learn", known, "--backend", "memory")
		s.ErrorContains(err, "read known addresses")
	})

	s.Run("unknown source", func() {
		known := filepath.Join(s.dir, "known.csv")
		s.Require().NoError(os.WriteFile(known, []byte("email,full_name\njdoe@acme.io,Jane Doe\n"), 0o600))
		_, err := s.execute("learn", known, "--backend", "memory", "--source", "gossip")
		s.ErrorContains(err, "unknown source")
	})

	s.Run("zero min hits", func() {
		_, err := s.execute("learn", filepath.Join(s.dir, "known.csv"), "--backend", "memory", "--min-hits", "0")
		s.ErrorContains(err, "--min-hits")
	})
}

func (s *CLISuite) TestCloseIntoReportsCloseError() {
	s.Run("close failure surfaces", func() {
		var err error
		closeInto(failingCloser{}, "output", &err)
		s.ErrorContains(err, "close output: no space left")
	})

	s.Run("earlier error wins", func() {
		first := errors.New("write result: broken pipe")
		err := first
		closeInto(failingCloser{}, "output", &err)
		s.Equal(first, err)
	})
}

func (s *CLISuite) TestScorerUsesConfiguredTrust() {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("confidence.trust.search", 0.2)
	v.Set("confidence.trust.provider", 0.7)
	cfg, err := config.Load(v)
	s.Require().NoError(err)

	sc, err := (&app{cfg: cfg}).scorer()
	s.Require().NoError(err)
	s.InDelta(0.2, sc.SourceTrust(confidence.SourceSearch), 1e-9)
	s.InDelta(0.7, sc.SourceTrust(confidence.SourceProvider), 1e-9)
	s.InDelta(1.0, sc.SourceTrust(confidence.SourceValidation), 1e-9)
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("no space left on device") }
