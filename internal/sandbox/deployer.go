package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// projectDir is where the project lives inside every sandbox.
const projectDir = "/home/sandbox/app"

// inlineScript bundles the static export into one self-contained HTML
// document on stdout. Runs inside the sandbox with node.
const inlineScript = `const fs=require("fs"),p=require("path");const dir=process.argv[2];
const html=fs.readFileSync(p.join(dir,"index.html"),"utf8");
process.stdout.write(html.replace(/<link[^>]*href="([^"]+\.css)"[^>]*>/g,(m,href)=>{
try{return "<style>"+fs.readFileSync(p.join(dir,href),"utf8")+"</style>"}catch(e){return m}}));`

// safeDepRe validates npm package names requested by the model before they
// reach a shell command.
var safeDepRe = regexp.MustCompile(`^[@a-zA-Z0-9][\w./@-]*$`)

// Deployment is one live sandbox running a generated project.
type Deployment struct {
	Instance   *Instance
	ProjectDir string
}

// BuildResult is the outcome of one build attempt.
type BuildResult struct {
	OK     bool
	Output string
}

// DeployerConfig holds deployment flow configuration.
type DeployerConfig struct {
	InstallTimeout time.Duration
	BuildTimeout   time.Duration
	PreviewPort    int
}

// Deployer runs generated projects in provider sandboxes.
type Deployer struct {
	client *Client
	tmpl   *Template
	cfg    DeployerConfig
	logger *slog.Logger
}

// NewDeployer creates a deployer around a provider client and the embedded
// project template.
func NewDeployer(client *Client, tmpl *Template, cfg DeployerConfig, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InstallTimeout == 0 {
		cfg.InstallTimeout = 4 * time.Minute
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = 4 * time.Minute
	}
	if cfg.PreviewPort == 0 {
		cfg.PreviewPort = 8080
	}
	return &Deployer{client: client, tmpl: tmpl, cfg: cfg, logger: logger}
}

// Available reports whether the sandbox provider is configured.
func (d *Deployer) Available() bool {
	return d.client.Configured()
}

// Deploy provisions a sandbox, uploads the template and generated files,
// and installs dependencies. Sub-step progress is reported through logf.
func (d *Deployer) Deploy(ctx context.Context, files map[string]string, extraDeps []string, logf func(string)) (*Deployment, error) {
	logf("Creating sandbox (node:20)...")
	inst, err := d.client.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("provisioning sandbox: %w", err)
	}
	logf("Sandbox created successfully")

	dep := &Deployment{Instance: inst, ProjectDir: projectDir}

	if err := d.mkdirs(ctx, dep, files); err != nil {
		return nil, err
	}

	total := len(d.tmpl.Files) + len(files)
	logf(fmt.Sprintf("Uploading %d files...", total))
	start := time.Now()

	for _, rel := range d.tmpl.Files {
		content, err := d.tmpl.Read(rel)
		if err != nil {
			return nil, err
		}
		if err := d.client.Upload(ctx, inst, projectDir+"/"+rel, content); err != nil {
			return nil, err
		}
	}
	if err := d.PushFiles(ctx, dep, files); err != nil {
		return nil, err
	}
	logf(fmt.Sprintf("Uploaded %d files in %.1fs", total, time.Since(start).Seconds()))

	if err := d.install(ctx, dep, extraDeps, logf); err != nil {
		return nil, err
	}

	return dep, nil
}

// PushFiles uploads generated files into an existing deployment. Used both
// on first deploy and to re-push corrected files between build attempts.
func (d *Deployer) PushFiles(ctx context.Context, dep *Deployment, files map[string]string) error {
	for rel, content := range files {
		if err := d.client.Upload(ctx, dep.Instance, dep.ProjectDir+"/"+rel, []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// Build runs the production build once and captures its output.
func (d *Deployer) Build(ctx context.Context, dep *Deployment) (*BuildResult, error) {
	result, err := d.client.Exec(ctx, dep.Instance,
		fmt.Sprintf("cd %s && npx next build 2>&1", dep.ProjectDir),
		d.cfg.BuildTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("running build: %w", err)
	}

	output := result.Output
	// Keep only the tail; that is where the compiler errors live.
	if len(output) > 3000 {
		output = output[len(output)-3000:]
	}

	return &BuildResult{OK: result.ExitCode == 0, Output: output}, nil
}

// Serve starts the dev server and returns the signed preview URL. It polls
// the server log for readiness rather than sleeping a fixed interval.
func (d *Deployer) Serve(ctx context.Context, dep *Deployment, logf func(string)) (string, error) {
	logf("Starting dev server (turbopack)...")

	startCmd := fmt.Sprintf(
		"cd %s && nohup npx next dev --turbopack -p %d > /tmp/next.log 2>&1 & disown",
		dep.ProjectDir, d.cfg.PreviewPort,
	)
	if _, err := d.client.Exec(ctx, dep.Instance, startCmd, 0); err != nil {
		return "", fmt.Errorf("starting dev server: %w", err)
	}

	start := time.Now()
	ready := false
	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}

		check, err := d.client.Exec(ctx, dep.Instance,
			`grep -c 'Ready in\|ready started' /tmp/next.log 2>/dev/null || echo 0`, 0)
		if err != nil {
			continue
		}
		if strings.TrimSpace(check.Output) != "0" {
			ready = true
			break
		}
	}

	if ready {
		logf(fmt.Sprintf("Dev server ready in %.1fs", time.Since(start).Seconds()))
	} else {
		// The server may be up even if the log line never matched.
		logf(fmt.Sprintf("Dev server started (%.1fs)", time.Since(start).Seconds()))
	}

	previewURL, err := d.client.PreviewURL(ctx, dep.Instance, d.cfg.PreviewPort)
	if err != nil {
		return "", err
	}

	d.logger.Info("preview ready", "sandbox_id", dep.Instance.ID, "preview_url", previewURL)
	return previewURL, nil
}

// CaptureStatic bundles the static export into a single self-contained
// HTML string. Returns empty when no export is available.
func (d *Deployer) CaptureStatic(ctx context.Context, dep *Deployment, logf func(string)) (string, error) {
	script := dep.ProjectDir + "/_inline.cjs"
	if err := d.client.Upload(ctx, dep.Instance, script, []byte(inlineScript)); err != nil {
		return "", err
	}

	result, err := d.client.Exec(ctx, dep.Instance,
		fmt.Sprintf("node %s %s/out", script, dep.ProjectDir), 0)
	if err != nil {
		return "", err
	}

	html := strings.TrimSpace(result.Output)
	if html == "" || result.ExitCode != 0 {
		d.logger.Warn("static HTML capture failed", "exit_code", result.ExitCode)
		return "", nil
	}

	logf(fmt.Sprintf("Static preview captured (%dKB)", len(html)/1024))
	return html, nil
}

// mkdirs creates the directory tree needed by the template and generated
// files in one shell call.
func (d *Deployer) mkdirs(ctx context.Context, dep *Deployment, files map[string]string) error {
	dirs := map[string]bool{"src/app": true, "src/lib": true}
	for rel := range files {
		if parent := path.Dir(rel); parent != "." && parent != "/" {
			dirs[parent] = true
		}
	}
	for _, rel := range d.tmpl.Files {
		if parent := path.Dir(rel); parent != "." && parent != "/" {
			dirs[parent] = true
		}
	}

	sorted := make([]string, 0, len(dirs))
	for dir := range dirs {
		sorted = append(sorted, dir)
	}
	sort.Strings(sorted)

	var quoted []string
	for _, dir := range sorted {
		quoted = append(quoted, fmt.Sprintf("'%s/%s'", dep.ProjectDir, dir))
	}

	_, err := d.client.Exec(ctx, dep.Instance, "mkdir -p "+strings.Join(quoted, " "), 0)
	if err != nil {
		return fmt.Errorf("creating project directories: %w", err)
	}
	return nil
}

// install runs npm install for the template plus any model-requested extra
// packages that pass name validation.
func (d *Deployer) install(ctx context.Context, dep *Deployment, extraDeps []string, logf func(string)) error {
	var safeDeps []string
	for _, name := range extraDeps {
		if safeDepRe.MatchString(name) {
			safeDeps = append(safeDeps, name)
		}
	}

	cmd := fmt.Sprintf("cd %s && npm install", dep.ProjectDir)
	if len(safeDeps) > 0 {
		cmd += " && npm install " + strings.Join(safeDeps, " ")
		logf(fmt.Sprintf("Installing dependencies + %d extra (%s)...", len(safeDeps), strings.Join(safeDeps, ", ")))
	} else {
		logf("Installing dependencies...")
	}

	start := time.Now()
	if _, err := d.client.Exec(ctx, dep.Instance, cmd, d.cfg.InstallTimeout); err != nil {
		return fmt.Errorf("installing dependencies: %w", err)
	}
	logf(fmt.Sprintf("Dependencies installed in %.1fs", time.Since(start).Seconds()))

	return nil
}
