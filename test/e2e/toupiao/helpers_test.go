package toupiao_test

import (
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/toupiaosdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Helpers for the end-to-end tests: image build, container setup and a
 * cookie-keeping browser that speaks the site's HTML forms.
 */

const (
	testImageName = "toupiao-test:latest"
	testPassword  = "Passw0rd!"
)

// TestMain builds the Docker image once before all tests and removes it
// afterwards.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	fmt.Fprintf(os.Stdout, "Building toupiao Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up toupiao Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/toupiao/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // the image might not exist
}

// site is a running container.
type site struct {
	t         *testing.T
	baseURL   string
	container testcontainers.Container
}

// setupSite starts toupiao over sqlite with relaxed rate limits. env
// overrides the defaults.
func setupSite(t *testing.T, env map[string]string) *site {
	t.Helper()
	if testing.Short() {
		t.Skip("end-to-end tests need Docker")
	}
	ctx := context.Background()

	vars := map[string]string{
		"ENV":              "test",
		"LOG_LEVEL":        "info",
		"LOG_FORMAT":       "text",
		"KEY_STORAGE_MODE": "ephemeral",
		"NUM_KEYS":         "1",
		"HTTPS_REDIRECT":   "false",
		"COOKIE_SECURE":    "false",
		"DEFAULT_CULTURE":  "en-US",
		// Tests submit forms far faster than people do.
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
	maps.Copy(vars, env)

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          vars,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return &site{t: t, baseURL: fmt.Sprintf("http://%s:%s", host, mappedPort.Port()), container: container}
}

func (s *site) client() *toupiaosdk.Client {
	return toupiaosdk.NewClient(s.baseURL)
}

var (
	confirmUserRE = regexp.MustCompile(`ConfirmEmail\?code=([A-Za-z0-9_-]+)&amp;userId=([A-Za-z0-9]+)`)
	formTokenRE   = regexp.MustCompile(`name="__RequestVerificationToken" value="([^"]+)"`)
)

// confirmationLink finds the newest confirmation link the log sender wrote
// for the site.
func (s *site) confirmationLink() string {
	s.t.Helper()
	var link string
	require.Eventually(s.t, func() bool {
		rc, err := s.container.Logs(context.Background())
		if err != nil {
			return false
		}
		defer rc.Close()
		logs, err := io.ReadAll(rc)
		if err != nil {
			return false
		}
		all := confirmUserRE.FindAllStringSubmatch(string(logs), -1)
		if len(all) == 0 {
			return false
		}
		m := all[len(all)-1]
		link = "/Identity/Account/ConfirmEmail?" + url.Values{"code": {m[1]}, "userId": {m[2]}}.Encode()
		return true
	}, 10*time.Second, 200*time.Millisecond, "no confirmation link in the logs")
	return link
}

// browser keeps cookies and does not follow redirects.
type browser struct {
	s      *site
	client *http.Client
	token  string
}

func (s *site) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(s.t, err)
	return &browser{s: s, client: &http.Client{
		Jar:           jar,
		Timeout:       10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) get(path string) page {
	b.s.t.Helper()
	resp, err := b.client.Get(b.s.baseURL + path)
	require.NoError(b.s.t, err)
	return b.read(resp)
}

// post submits a form with the antiforgery token of the last page read.
func (b *browser) post(path string, form url.Values) page {
	b.s.t.Helper()
	require.NotEmpty(b.s.t, b.token, "no form page loaded before posting to %s", path)
	form.Set("__RequestVerificationToken", b.token)
	resp, err := b.client.Post(b.s.baseURL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(b.s.t, err)
	return b.read(resp)
}

func (b *browser) read(resp *http.Response) page {
	b.s.t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.s.t, err)
	if m := formTokenRE.FindSubmatch(body); m != nil {
		b.token = string(m[1])
	}
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (b *browser) cookie(name string) string {
	u, err := url.Parse(b.s.baseURL)
	require.NoError(b.s.t, err)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// registerAndConfirm creates an account through the register page and
// follows the mailed confirmation link.
func (b *browser) registerAndConfirm(userName, email string) {
	b.s.t.Helper()
	b.get("/Identity/Account/Register")
	p := b.post("/Identity/Account/Register", url.Values{
		"Input.UserName":        {userName},
		"Input.Email":           {email},
		"Input.Password":        {testPassword},
		"Input.ConfirmPassword": {testPassword},
	})
	require.Equal(b.s.t, http.StatusFound, p.status, p.body)

	p = b.get(b.s.confirmationLink())
	require.Equal(b.s.t, http.StatusOK, p.status, p.body)
}

func (b *browser) login(email string) page {
	b.s.t.Helper()
	b.get("/Identity/Account/Login")
	return b.post("/Identity/Account/Login", url.Values{
		"Input.Email":    {email},
		"Input.Password": {testPassword},
	})
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *toupiaosdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
