package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/jtarchie/scrub/commands"
	_ "github.com/jtarchie/scrub/store/file"
	_ "github.com/jtarchie/scrub/store/sqlite"
	"github.com/klauspost/compress/zstd"
	. "github.com/onsi/gomega"
	"github.com/phayes/freeport"
)

var usherKeywords = []string{"she", "he", "her", "123", "hers"}

func writeFile(t *testing.T, path string, contents string) string {
	t.Helper()

	assert := NewGomegaWithT(t)

	assert.Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	assert.Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())

	return path
}

func TestRedact(t *testing.T) {
	t.Parallel()

	t.Run("stdin to stdout", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Redact{Matcher: commands.Matcher{Keyword: usherKeywords}}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("ushershe123!\n"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("u**********!\n"))
	})

	t.Run("files matched by a glob", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		dir := t.TempDir()

		writeFile(t, filepath.Join(dir, "a", "one.log"), "ushers\n")
		writeFile(t, filepath.Join(dir, "b", "two.log"), "nothing\n")
		writeFile(t, filepath.Join(dir, "b", "skip.txt"), "ushers\n")

		cmd := &commands.Redact{
			Matcher: commands.Matcher{Keyword: usherKeywords, Mask: "#"},
			Paths:   []string{filepath.Join(dir, "**", "*.log")},
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), nil, stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("u#####\nnothing\n"))
	})

	t.Run("in place", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		path := writeFile(t, filepath.Join(t.TempDir(), "app.log"), "password=hunter2\n")

		cmd := &commands.Redact{
			Matcher: commands.Matcher{Keyword: []string{"hunter2"}},
			Paths:   []string{path},
			InPlace: true,
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), nil, stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(BeEmpty())

		contents, err := os.ReadFile(path)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(string(contents)).To(Equal("password=*******\n"))

		info, err := os.Stat(path)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	t.Run("in place on zstd files", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		path := filepath.Join(t.TempDir(), "app.log.zst")

		encoder, err := zstd.NewWriter(nil)
		assert.Expect(err).NotTo(HaveOccurred())
		writeFile(t, path, string(encoder.EncodeAll([]byte("token=hunter2\n"), nil)))
		assert.Expect(encoder.Close()).To(Succeed())

		cmd := &commands.Redact{
			Matcher: commands.Matcher{Keyword: []string{"hunter2"}},
			Paths:   []string{path},
			InPlace: true,
		}

		err = cmd.Execute(context.Background(), slog.Default(), nil, &bytes.Buffer{})
		assert.Expect(err).NotTo(HaveOccurred())

		compressed, err := os.ReadFile(path)
		assert.Expect(err).NotTo(HaveOccurred())

		decoder, err := zstd.NewReader(nil)
		assert.Expect(err).NotTo(HaveOccurred())
		defer decoder.Close()

		contents, err := decoder.DecodeAll(compressed, nil)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(string(contents)).To(Equal("token=*******\n"))
	})

	t.Run("diff", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		path := writeFile(t, filepath.Join(t.TempDir(), "app.log"), "line one\nsecret here\nline three\n")

		cmd := &commands.Redact{
			Matcher: commands.Matcher{Keyword: []string{"secret"}},
			Paths:   []string{path},
			Diff:    true,
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), nil, stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(ContainSubstring("-secret here"))
		assert.Expect(stdout.String()).To(ContainSubstring("+****** here"))

		contents, err := os.ReadFile(path)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(string(contents)).To(ContainSubstring("secret here"))
	})

	t.Run("keywords from a config file", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		dir := t.TempDir()

		writeFile(t, filepath.Join(dir, "lists", "names.txt"), "# customers\nACME Corp\n")
		configPath := writeFile(t, filepath.Join(dir, "scrub.yml"), fmt.Sprintf(
			"case_insensitive: false\nmask: '-'\nkeywords: [Secret]\nfiles: [%q]\n",
			filepath.Join(dir, "lists", "*.txt"),
		))

		cmd := &commands.Redact{Matcher: commands.Matcher{Config: configPath}}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("Secret secret ACME Corp"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("------ secret ---------"))
	})

	t.Run("flags override the config file", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		configPath := writeFile(t, filepath.Join(t.TempDir(), "scrub.yml"), "mask: '-'\nkeywords: [one]\n")

		cmd := &commands.Redact{Matcher: commands.Matcher{
			Config:  configPath,
			Keyword: []string{"two"},
			Mask:    "x",
		}}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("one two ONE"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("xxx xxx xxx"))
	})

	t.Run("in place requires paths", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Redact{Matcher: commands.Matcher{Keyword: usherKeywords}, InPlace: true}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader(""), &bytes.Buffer{})
		assert.Expect(err).To(HaveOccurred())
	})

	t.Run("unmatched glob errors", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Redact{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Paths:   []string{filepath.Join(t.TempDir(), "*.log")},
		}

		err := cmd.Execute(context.Background(), slog.Default(), nil, &bytes.Buffer{})
		assert.Expect(err).To(MatchError(ContainSubstring("no files matched")))
	})
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Scan{Matcher: commands.Matcher{Keyword: usherKeywords}}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("ushers"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("-:1:3:she\n-:2:3:he\n-:2:4:her\n-:2:5:hers\n"))
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		path := writeFile(t, filepath.Join(t.TempDir(), "input.txt"), "ushers")

		cmd := &commands.Scan{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Paths:   []string{path},
			Format:  "json",
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), nil, stdout)
		assert.Expect(err).NotTo(HaveOccurred())

		var results []commands.ScanResult
		assert.Expect(json.Unmarshal(stdout.Bytes(), &results)).To(Succeed())
		assert.Expect(results).To(HaveLen(4))
		assert.Expect(results[3]).To(Equal(commands.ScanResult{Path: path, Start: 2, End: 5, Keyword: "hers"}))
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Scan{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Format:  "yaml",
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("123"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())

		var results []commands.ScanResult
		assert.Expect(yaml.Unmarshal(stdout.Bytes(), &results)).To(Succeed())
		assert.Expect(results).To(Equal([]commands.ScanResult{{Path: "-", Start: 0, End: 2, Keyword: "123"}}))
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Scan{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Format:  "json",
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("nothing"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(MatchJSON("[]"))
	})

	t.Run("filter", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Scan{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Filter:  `len(Keyword) > 2 && End - Start >= 2 && Path == "-"`,
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("ushers"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("-:1:3:she\n-:2:4:her\n-:2:5:hers\n"))
	})

	t.Run("invalid filter", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Scan{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Filter:  `Start + "x"`,
		}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("ushers"), &bytes.Buffer{})
		assert.Expect(err).To(MatchError(ContainSubstring("could not compile filter")))
	})

	t.Run("unknown field in filter", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Scan{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Filter:  `Line > 1`,
		}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("ushers"), &bytes.Buffer{})
		assert.Expect(err).To(HaveOccurred())
	})
}

func TestContains(t *testing.T) {
	t.Parallel()

	t.Run("stdin with a keyword", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Contains{Matcher: commands.Matcher{Keyword: usherKeywords}}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("USHERS"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal("-\n"))
	})

	t.Run("stdin without a keyword", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Contains{Matcher: commands.Matcher{Keyword: usherKeywords}}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("nothing"), &bytes.Buffer{})
		assert.Expect(err).To(MatchError(commands.ErrNoMatch))
	})

	t.Run("case sensitive", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Contains{Matcher: commands.Matcher{Keyword: usherKeywords, CaseSensitive: true}}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("USHERS"), &bytes.Buffer{})
		assert.Expect(err).To(MatchError(commands.ErrNoMatch))
	})

	t.Run("files", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		dir := t.TempDir()

		hit := writeFile(t, filepath.Join(dir, "hit.txt"), "ushers")
		writeFile(t, filepath.Join(dir, "miss.txt"), "nothing")

		cmd := &commands.Contains{
			Matcher: commands.Matcher{Keyword: usherKeywords},
			Paths:   []string{filepath.Join(dir, "*.txt")},
		}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), nil, stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(Equal(hit + "\n"))
	})

	t.Run("quiet", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		cmd := &commands.Contains{Matcher: commands.Matcher{Keyword: usherKeywords}, Quiet: true}
		stdout := &bytes.Buffer{}

		err := cmd.Execute(context.Background(), slog.Default(), strings.NewReader("ushers"), stdout)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(stdout.String()).To(BeEmpty())
	})
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	dsns := map[string]func(dir string) string{
		"file": func(dir string) string {
			return "file://" + filepath.Join(dir, "keywords.yml")
		},
		"sqlite": func(dir string) string {
			return "sqlite://" + filepath.Join(dir, "keywords.db") + "?key=passphrase"
		},
	}

	for name, dsn := range dsns {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert := NewGomegaWithT(t)
			ctx := context.Background()
			dir := t.TempDir()
			flags := commands.StoreFlags{Store: dsn(dir)}

			listFile := writeFile(t, filepath.Join(dir, "list.txt"), "# from a file\nACME Corp\n")

			add := &commands.KeywordsAdd{StoreFlags: flags, Keywords: []string{"hunter2", "she"}, File: []string{listFile}}
			assert.Expect(add.Execute(ctx, slog.Default())).To(Succeed())

			other := &commands.KeywordsAdd{StoreFlags: flags, Set: "other", Keywords: []string{"zebra"}}
			assert.Expect(other.Execute(ctx, slog.Default())).To(Succeed())

			stdout := &bytes.Buffer{}
			list := &commands.KeywordsList{StoreFlags: flags}
			assert.Expect(list.Execute(ctx, slog.Default(), stdout)).To(Succeed())
			assert.Expect(stdout.String()).To(Equal("ACME Corp\nhunter2\nshe\n"))

			stdout.Reset()
			sets := &commands.KeywordsSets{StoreFlags: flags}
			assert.Expect(sets.Execute(ctx, slog.Default(), stdout)).To(Succeed())
			assert.Expect(stdout.String()).To(Equal("default\nother\n"))

			remove := &commands.KeywordsRemove{StoreFlags: flags, Keywords: []string{"she"}}
			assert.Expect(remove.Execute(ctx, slog.Default())).To(Succeed())

			missing := &commands.KeywordsRemove{StoreFlags: flags, Keywords: []string{"she"}}
			assert.Expect(missing.Execute(ctx, slog.Default())).NotTo(Succeed())

			stdout.Reset()
			redact := &commands.Redact{Matcher: commands.Matcher{Store: flags.Store}}
			err := redact.Execute(ctx, slog.Default(), strings.NewReader("acme corp: hunter2, she, zebra"), stdout)
			assert.Expect(err).NotTo(HaveOccurred())
			assert.Expect(stdout.String()).To(Equal("*********: *******, she, zebra"))

			stdout.Reset()
			redact = &commands.Redact{Matcher: commands.Matcher{Store: flags.Store, Set: []string{"default", "other"}}}
			err = redact.Execute(ctx, slog.Default(), strings.NewReader("hunter2 zebra"), stdout)
			assert.Expect(err).NotTo(HaveOccurred())
			assert.Expect(stdout.String()).To(Equal("******* *****"))
		})
	}

	t.Run("add requires keywords", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		add := &commands.KeywordsAdd{StoreFlags: commands.StoreFlags{Store: "file://" + filepath.Join(t.TempDir(), "k.yml")}}
		assert.Expect(add.Execute(context.Background(), slog.Default())).NotTo(Succeed())
	})

	t.Run("passphrases stay out of errors", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		list := &commands.KeywordsList{StoreFlags: commands.StoreFlags{Store: "sqlite://\x7f?key=topsecret"}}
		err := list.Execute(context.Background(), slog.Default(), &bytes.Buffer{})
		assert.Expect(err).To(HaveOccurred())
		assert.Expect(err.Error()).NotTo(ContainSubstring("topsecret"))

		redact := &commands.Redact{Matcher: commands.Matcher{Store: "sqlite://\x7f?key=topsecret"}}
		err = redact.Execute(context.Background(), slog.Default(), strings.NewReader(""), &bytes.Buffer{})
		assert.Expect(err).To(HaveOccurred())
		assert.Expect(err.Error()).NotTo(ContainSubstring("topsecret"))
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		list := &commands.KeywordsList{StoreFlags: commands.StoreFlags{Store: "nope://"}}
		assert.Expect(list.Execute(context.Background(), slog.Default(), &bytes.Buffer{})).NotTo(Succeed())
	})
}

func TestServer(t *testing.T) {
	t.Parallel()

	assert := NewGomegaWithT(t)

	port, err := freeport.GetFreePort()
	assert.Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := &commands.Server{
		Matcher: commands.Matcher{Keyword: usherKeywords},
		Port:    port,
	}

	done := make(chan error, 1)

	go func() {
		done <- cmd.Execute(ctx, slog.Default())
	}()

	baseURL := fmt.Sprintf("http://localhost:%d", port)

	assert.Eventually(func() int {
		response, err := http.Get(baseURL + "/health")
		if err != nil {
			return 0
		}
		defer func() { _ = response.Body.Close() }()

		return response.StatusCode
	}, 5*time.Second, 50*time.Millisecond).Should(Equal(http.StatusOK))

	response, err := http.Post(baseURL+"/api/redact", "application/json", strings.NewReader(`{"text":"ushers"}`))
	assert.Expect(err).NotTo(HaveOccurred())
	defer func() { _ = response.Body.Close() }()

	var body struct {
		Text string `json:"text"`
	}
	assert.Expect(json.NewDecoder(response.Body).Decode(&body)).To(Succeed())
	assert.Expect(body.Text).To(Equal("u*****"))

	cancel()
	assert.Eventually(done, 15*time.Second).Should(Receive(BeNil()))
}
