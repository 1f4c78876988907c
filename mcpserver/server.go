// Package mcpserver exposes env file parsing and pipeline rendering as MCP
// tools over stdio, so editors and agents can preview what kvenv would
// upload and generate. Tools never return secret values and never touch a
// vault.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/logutil"
	"github.com/jongio/kvenv/pipeline"
	"github.com/jongio/kvenv/secretname"
	"github.com/jongio/kvenv/security"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"
)

// Tool names.
const (
	ToolParseEnv       = "parse_env"
	ToolRenderPipeline = "render_pipeline"
)

// Default per-tool limits: a burst of 10 calls, refilled at one per second.
const (
	defaultBurst = 10
	defaultRate  = 1.0
)

// Server serves the kvenv tools.
type Server struct {
	baseDir string
	mcp     *server.MCPServer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	burst    int
	rate     rate.Limit
}

// New creates a server whose tools may only read files under baseDir.
func New(baseDir, version string) *Server {
	s := &Server{
		baseDir:  baseDir,
		limiters: make(map[string]*rate.Limiter),
		burst:    defaultBurst,
		rate:     rate.Limit(defaultRate),
	}

	s.mcp = server.NewMCPServer("kvenv", version, server.WithToolCapabilities(false))

	s.mcp.AddTool(mcp.NewTool(ToolParseEnv,
		mcp.WithDescription("Parse .env files and list the keys with the Key Vault secret names they upload as. Values are not returned."),
		mcp.WithArray("paths", mcp.Required(), mcp.Description("Env files to parse, relative to the working directory"), mcp.WithStringItems()),
		mcp.WithString("keyPolicy", mcp.Description("Key spelling applied while parsing"), mcp.Enum("keep", "file", "store")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleParseEnv)

	s.mcp.AddTool(mcp.NewTool(ToolRenderPipeline,
		mcp.WithDescription("Render the Azure Pipelines template that sets App Service settings to Key Vault references"),
		mcp.WithArray("paths", mcp.Required(), mcp.Description("Env files to parse, relative to the working directory"), mcp.WithStringItems()),
		mcp.WithString("vault", mcp.Required(), mcp.Description("Key Vault name")),
		mcp.WithString("keyPolicy", mcp.Description("Key spelling applied while parsing"), mcp.Enum("keep", "file", "store")),
		mcp.WithBoolean("environmentSuffix", mcp.Description("Append the pipeline's environment parameter to the vault name")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleRenderPipeline)

	return s
}

// Serve runs the stdio transport until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logutil.NewLogger("mcp").Info("serving MCP tools on stdio", "baseDir", s.baseDir)
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// allow consumes one token from the tool's limiter.
func (s *Server) allow(tool string) error {
	s.mu.Lock()
	limiter, ok := s.limiters[tool]
	if !ok {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[tool] = limiter
	}
	s.mu.Unlock()

	if !limiter.Allow() {
		return fmt.Errorf("rate limit exceeded for tool %q, please wait before retrying", tool)
	}
	return nil
}

type keyInfo struct {
	Key        string `json:"key"`
	SecretName string `json:"secretName"`
	Valid      bool   `json:"valid"`
	Reference  bool   `json:"alreadyReference,omitempty"`
}

type parseResult struct {
	Files []string  `json:"files"`
	Count int       `json:"count"`
	Keys  []keyInfo `json:"keys"`
}

func (s *Server) handleParseEnv(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.allow(ToolParseEnv); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t, files, err := s.load(argsMap(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := parseResult{Files: files, Count: t.Len(), Keys: make([]keyInfo, 0, t.Len())}
	for _, entry := range t.Entries() {
		name := secretname.ToStoreForm(entry.Key)
		result.Keys = append(result.Keys, keyInfo{
			Key:        entry.Key,
			SecretName: name,
			Valid:      secretname.Validate(name) == nil,
			Reference:  keyvault.IsKeyVaultReference(entry.Value),
		})
	}
	return jsonResult(result)
}

func (s *Server) handleRenderPipeline(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.allow(ToolRenderPipeline); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := argsMap(request)
	vault, _ := stringParam(args, "vault")

	t, _, err := s.load(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := keyvault.CheckPreconditions(vault, t); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc := pipeline.Render(vault, t, pipeline.Options{EnvironmentSuffix: boolParam(args, "environmentSuffix")})
	return mcp.NewToolResultText(doc), nil
}

// load parses every path argument, in order, into one table.
func (s *Server) load(args map[string]interface{}) (*envfile.Table, []string, error) {
	paths := stringsParam(args, "paths")
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("at least one path is required")
	}

	policyName, _ := stringParam(args, "keyPolicy")
	policy, err := envfile.ParseKeyPolicy(policyName)
	if err != nil {
		return nil, nil, err
	}
	opts := envfile.Options{KeyPolicy: policy}

	t := envfile.NewTable(policy.Form())
	files := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.baseDir, p)
		}
		resolved, err := security.ValidatePathWithinBases(p, s.baseDir)
		if err != nil {
			return nil, nil, err
		}
		if _, err := envfile.Load(resolved, t, opts); err != nil {
			return nil, nil, err
		}
		files = append(files, resolved)
	}
	return t, files, nil
}
