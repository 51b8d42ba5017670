package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/config"
	"github.com/R3E-Network/autoscorer/internal/manifest"
	"github.com/R3E-Network/autoscorer/internal/resource"
	"github.com/R3E-Network/autoscorer/internal/retry"
	"github.com/R3E-Network/autoscorer/internal/sizestring"
	wspkg "github.com/R3E-Network/autoscorer/internal/workspace"
)

// DockerExecutor runs jobs against a local or remote Docker engine,
// grounded on the original DockerExecutor.run.
type DockerExecutor struct {
	cfg   config.ExecutorConfig
	paths config.PathsConfig
	host  string
	cli   *client.Client
	log   *logrus.Logger
}

// NewDockerExecutor dials the docker engine at host (or cfg's configured
// host, or the default local socket).
func NewDockerExecutor(cfg config.ExecutorConfig, paths config.PathsConfig, host string, log *logrus.Logger) (*DockerExecutor, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	resolvedHost := resolveEngineHost(host, cfg)
	cli, err := client.NewClientWithOpts(
		client.WithHost(resolvedHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeSchedulerError, fmt.Sprintf("cannot create docker client: %v", err))
	}
	return &DockerExecutor{cfg: cfg, paths: paths, host: resolvedHost, cli: cli, log: log}, nil
}

// Run executes spec's container against workspace, blocking until the
// container finishes or spec.TimeLimit elapses.
func (e *DockerExecutor) Run(ctx context.Context, spec *manifest.JobSpec, workspace string) error {
	wsHost := workspace
	if isLocalEngineHost(e.host) {
		wsHost = translateToHostPath(workspace, e.paths)
	}

	wsHostPaths := wspkg.New(wsHost)
	inputDir := wsHostPaths.Input()
	outputDir := wsHostPaths.Output()
	logsDir := wsHostPaths.Logs()
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return apierrors.New(apierrors.CodePermissionError, err.Error())
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return apierrors.New(apierrors.CodePermissionError, err.Error())
	}

	cpu := spec.Resources.CPU
	if cpu <= 0 {
		cpu = envFloatDefault(e.cfg.DefaultCPU, 2)
	}
	mem := sizestring.NormalizeDefault(spec.Resources.Memory, envStringDefault(e.cfg.DefaultMemory, "4g"))
	gpus := spec.EffectiveGPUs()
	if gpus == 0 {
		gpus = e.cfg.DefaultGPU
	}
	shmSize := sizestring.NormalizeDefault(spec.Container.ShmSize, envStringDefault(e.cfg.DefaultShmSize, "1g"))
	timeout := time.Duration(spec.TimeLimit) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(e.cfg.Timeout) * time.Second
	}

	e.maybeLogin(ctx)

	requestedRef := spec.Container.Image
	normalizedRef := normalizeImageRef(requestedRef)
	resolution, err := e.resolveImage(ctx, requestedRef, normalizedRef, workspace)
	resolution.WorkspacePathSubstituted = wsHost != workspace
	resolution.WorkspaceRequested = workspace
	resolution.WorkspaceHost = wsHost
	if err != nil {
		e.writeRunInfo(logsDir, resolution)
		return err
	}
	e.writeRunInfo(logsDir, resolution)

	mounts := []mount.Mount{
		{Type: mount.TypeBind, Source: inputDir, Target: "/workspace/input", ReadOnly: true},
		{Type: mount.TypeBind, Source: outputDir, Target: "/workspace/output", ReadOnly: false},
		{Type: mount.TypeBind, Source: wsHostPaths.Meta(), Target: "/workspace/meta.json", ReadOnly: true},
	}

	securityOpts := []string{"no-new-privileges:true"}
	if e.cfg.SecurityOpts != "" {
		securityOpts = strings.Split(e.cfg.SecurityOpts, ",")
	}

	var deviceRequests []container.DeviceRequest
	if gpus > 0 {
		deviceRequests = []container.DeviceRequest{{Count: gpus, Capabilities: [][]string{{"gpu"}}}}
	}

	memBytes, err := sizestring.Bytes(mem)
	if err != nil {
		return apierrors.New(apierrors.CodeInvalidResources, err.Error())
	}
	shmBytes, err := sizestring.Bytes(shmSize)
	if err != nil {
		return apierrors.New(apierrors.CodeInvalidResources, err.Error())
	}

	env := make([]string, 0, len(spec.Container.Env))
	for k, v := range spec.Container.Env {
		env = append(env, k+"="+v)
	}

	containerName := fmt.Sprintf("autoscorer-%s", truncate(spec.JobID, 12))
	containerCfg := &container.Config{
		Image:      normalizedRef,
		Cmd:        spec.Container.Cmd,
		Env:        env,
		Labels:     map[string]string{"app": "autoscorer", "job_id": spec.JobID},
		WorkingDir: "/workspace",
	}
	hostCfg := &container.HostConfig{
		Mounts:         mounts,
		NetworkMode:    container.NetworkMode(networkMode(spec.Container.NetworkPolicy)),
		SecurityOpt:    securityOpts,
		ShmSize:        shmBytes,
		Resources: container.Resources{
			Memory:         memBytes,
			NanoCPUs:       int64(cpu * 1e9),
			DeviceRequests: deviceRequests,
		},
		ReadonlyRootfs: true,
	}

	created, err := e.cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, containerName)
	if err != nil {
		return apierrors.New(apierrors.CodeContainerCreateErr, err.Error())
	}
	id := created.ID

	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = e.cli.ContainerRemove(removeCtx, id, container.RemoveOptions{Force: true})
	}()

	if err := e.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return apierrors.New(apierrors.CodeContainerCreateErr, err.Error())
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sampler := resource.NewSampler(500 * time.Millisecond)
	sampleCtx, stopSampling := context.WithCancel(waitCtx)
	go sampler.Run(sampleCtx)

	statusCh, errCh := e.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)
	var exitCode int64
	var waitErr error
	select {
	case err := <-errCh:
		if err != nil {
			if waitCtx.Err() != nil {
				waitErr = apierrors.New(apierrors.CodeTimeoutError, fmt.Sprintf("container execution timed out after %s", timeout))
			} else {
				waitErr = apierrors.New(apierrors.CodeContainerWaitErr, err.Error())
			}
		}
	case res := <-statusCh:
		exitCode = res.StatusCode
	case <-waitCtx.Done():
		waitErr = apierrors.New(apierrors.CodeTimeoutError, fmt.Sprintf("container execution timed out after %s", timeout))
	}
	stopSampling()
	e.writeResourceSummary(logsDir, sampler)
	if waitErr != nil {
		return waitErr
	}

	e.captureLogs(ctx, id, logsDir)

	if exitCode != 0 {
		e.captureInspect(ctx, id, logsDir)
		return apierrors.New(apierrors.CodeContainerExitNZ, fmt.Sprintf("exit %d", exitCode))
	}
	return nil
}

func (e *DockerExecutor) captureLogs(ctx context.Context, id, logsDir string) {
	rc, err := e.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return
	}
	defer rc.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, rc)
	_ = os.WriteFile(filepath.Join(logsDir, "container.log"), buf.Bytes(), 0o644)
}

func (e *DockerExecutor) captureInspect(ctx context.Context, id, logsDir string) {
	info, err := e.cli.ContainerInspect(ctx, id)
	if err != nil {
		return
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(logsDir, "inspect.json"), data, 0o644)
}

func (e *DockerExecutor) maybeLogin(ctx context.Context) {
	if e.cfg.RegistryUser == "" || e.cfg.RegistryPass == "" || e.cfg.RegistryURL == "" {
		return
	}
	_, _ = e.cli.RegistryLogin(ctx, registry.AuthConfig{
		Username:      e.cfg.RegistryUser,
		Password:      e.cfg.RegistryPass,
		ServerAddress: e.cfg.RegistryURL,
	})
}

func (e *DockerExecutor) resolveImage(ctx context.Context, requestedRef, normalizedRef, workspace string) (ImageResolution, error) {
	res := ImageResolution{
		ImageRequested: requestedRef,
		ImageResolved:  normalizedRef,
		PullPolicy:     strings.ToLower(e.cfg.ImagePullPolicy),
		EngineHost:     e.host,
	}
	if res.PullPolicy == "" {
		res.PullPolicy = "ifnotpresent"
	}

	present, imageID := e.localImage(ctx, normalizedRef)
	res.ImagePresentLocal = present
	res.ImageID = imageID

	shouldPull := false
	switch res.PullPolicy {
	case "always":
		shouldPull = true
	case "ifnotpresent":
		shouldPull = !present
	case "never":
		shouldPull = false
	}

	if shouldPull {
		if err := e.pullWithRetry(ctx, normalizedRef); err != nil {
			if loaded, id := e.tryLoadOfflineImage(workspace, normalizedRef); loaded {
				res.Action = "loaded_tar"
				res.ImagePresentLocal = true
				res.ImageID = id
				return res, nil
			}
			if present {
				res.Action = "use_local_fallback"
				return res, nil
			}
			return res, apierrors.New(apierrors.CodeImagePullFailed, err.Error()).WithDetails(map[string]any{"policy": res.PullPolicy})
		}
		res.Action = "pulled"
		present, imageID = e.localImage(ctx, normalizedRef)
		res.ImagePresentLocal = present
		res.ImageID = imageID
		return res, nil
	}

	if res.PullPolicy == "never" && !present {
		if loaded, id := e.tryLoadOfflineImage(workspace, normalizedRef); loaded {
			res.Action = "loaded_tar"
			res.ImagePresentLocal = true
			res.ImageID = id
			return res, nil
		}
		return res, apierrors.New(apierrors.CodeImageNotPresent, fmt.Sprintf(
			"image %q not present locally and IMAGE_PULL_POLICY=never; pre-pull it or place an image.tar in %s", normalizedRef, workspace))
	}

	res.Action = "use_local"
	return res, nil
}

func (e *DockerExecutor) localImage(ctx context.Context, ref string) (bool, string) {
	if img, _, err := e.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return true, img.ID
	}
	f := filters.NewArgs(filters.Arg("reference", ref))
	if list, err := e.cli.ImageList(ctx, image.ListOptions{Filters: f}); err == nil && len(list) > 0 {
		return true, list[0].ID
	}
	repo, _ := splitImageRef(ref)
	f2 := filters.NewArgs(filters.Arg("reference", repo+"*"))
	if list, err := e.cli.ImageList(ctx, image.ListOptions{Filters: f2}); err == nil {
		for _, im := range list {
			for _, tag := range im.RepoTags {
				if tag == ref {
					return true, im.ID
				}
			}
		}
	}
	return false, ""
}

func (e *DockerExecutor) pullWithRetry(ctx context.Context, ref string) error {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	return retry.Do(ctx, cfg, func() error {
		rc, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(io.Discard, rc)
		return err
	})
}

func (e *DockerExecutor) tryLoadOfflineImage(workspace, normalizedRef string) (bool, string) {
	for _, name := range []string{"image.tar", "image.tar.gz", "image.tgz"} {
		path := filepath.Join(workspace, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		resp, err := e.cli.ImageLoad(context.Background(), bytes.NewReader(data), true)
		if err != nil {
			e.log.WithField("file", name).WithError(err).Warn("failed to load offline image")
			continue
		}
		_ = resp.Body.Close()
		present, id := e.localImage(context.Background(), normalizedRef)
		if present {
			return true, id
		}
		return true, ""
	}
	return false, ""
}

// writeResourceSummary persists the sampler's peak/average readings so the
// scoring stage can fold host resource usage into the result document.
func (e *DockerExecutor) writeResourceSummary(logsDir string, sampler *resource.Sampler) {
	data, err := json.MarshalIndent(sampler.Summary(), "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(logsDir, "resources.json"), data, 0o644)
}

func (e *DockerExecutor) writeRunInfo(logsDir string, res ImageResolution) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(logsDir, "run_info.json"), data, 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func envFloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
		return def
	}
	return v
}

func envStringDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
