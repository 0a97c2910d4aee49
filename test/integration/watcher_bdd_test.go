//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/config"
	"github.com/eliteGoblin/focusd/win_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/infra"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
	"github.com/eliteGoblin/focusd/win_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/win_mon/test/fixtures"
)

const gameWindow domain.WindowID = 0x4400002

var _ = Describe("Watcher", func() {
	var (
		tmpDir     string
		configFile string
		desktop    *fixtures.FakeDesktop
		clock      *fixtures.ManualClock
		history    *infra.EncryptedHistory
		statusFile *infra.StatusFile
		sleeper    *exec.Cmd
		watcher    *daemon.Watcher
	)

	writeConfig := func(content string) {
		Expect(os.WriteFile(configFile, []byte(content), 0600)).To(Succeed())
	}

	poll := func(seconds int) {
		for i := 0; i < seconds; i++ {
			watcher.Tick(context.Background())
			clock.Advance(time.Second)
		}
	}

	newWatcher := func(dryRun bool) {
		source := config.NewFileSource(configFile)
		cfg, err := source.Load()
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		enforcer := usecase.NewEnforcerWithStore(infra.NewProcessManager(), history,
			usecase.EnforcerConfig{DryRun: dryRun, SessionID: "integration"}, logger)
		sweeper := usecase.NewSweeper(cfg.SweepInterval.Duration(), cfg.RecordsTTL.Duration(), source, logger)

		watcher = daemon.NewWatcher(daemon.DefaultWatcherConfig(), desktop, enforcer, sweeper,
			infra.NewActivityLog(logger), statusFile, policy.Compile(cfg.Rules),
			domain.DaemonStatus{PID: os.Getpid(), SessionID: "integration", DryRun: dryRun}, logger)
		watcher.SetClock(clock.Now)
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "winmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		configFile = filepath.Join(tmpDir, "winmon.yaml")
		writeConfig(`
WINDOWS_SETTINGS:
  "Dota 2": 5
  "gnome-terminal": -1
RECORDS_TTL_CHECK_INTERVAL: 10
`)

		history, err = infra.OpenHistory(filepath.Join(tmpDir, "data"))
		Expect(err).NotTo(HaveOccurred())
		statusFile = infra.NewStatusFileWithPath(filepath.Join(tmpDir, "status.json"))

		sleeper = exec.Command("sleep", "300")
		Expect(sleeper.Start()).To(Succeed())
		if sleeper.Process.Pid <= domain.PIDFloor {
			Skip("sleep got a PID the enforcer refuses to touch")
		}

		desktop = fixtures.NewFakeDesktop()
		desktop.Open(domain.WindowAttributes{
			Window:  gameWindow,
			Classes: []string{"dota2", "dota2"},
			PID:     sleeper.Process.Pid,
			HasPID:  true,
			Name:    "Dota 2",
			HasName: true,
		})
		clock = fixtures.NewManualClock(time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC))
	})

	AfterEach(func() {
		if sleeper != nil && sleeper.ProcessState == nil {
			_ = sleeper.Process.Kill()
			_ = sleeper.Wait()
		}
		if history != nil {
			history.Close()
		}
		os.RemoveAll(tmpDir)
	})

	Context("when enforcing", func() {
		It("terminates the window owner once its budget is spent and records it", func() {
			newWatcher(false)
			desktop.Focus(gameWindow)

			poll(6)
			Expect(sleeper.ProcessState).To(BeNil())

			poll(1)
			Expect(sleeper.Wait()).To(HaveOccurred(), "sleep exits on SIGTERM")

			events, err := history.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Rule).To(Equal("Dota 2"))
			Expect(events[0].Outcome).To(Equal(domain.OutcomeTerminated))
			Expect(events[0].ProcessName).To(Equal("sleep"))
			Expect(events[0].SessionID).To(Equal("integration"))
		})
	})

	Context("when in dry-run mode", func() {
		It("records the decision but leaves the process running", func() {
			newWatcher(true)
			desktop.Focus(gameWindow)

			poll(7)

			Expect(infra.NewProcessManager().IsRunning(sleeper.Process.Pid)).To(BeTrue())
			events, err := history.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Outcome).To(Equal(domain.OutcomeDryRun))
		})
	})

	Context("when the config file changes", func() {
		It("picks up the new rules on the next sweep", func() {
			newWatcher(false)
			writeConfig(`
WINDOWS_SETTINGS:
  "Dota 2": -1
RECORDS_TTL_CHECK_INTERVAL: 10
`)

			poll(1)
			Expect(watcher.Table().Len()).To(Equal(2))

			poll(11)
			timeout, ok := watcher.Table().Timeout("Dota 2")
			Expect(ok).To(BeTrue())
			Expect(timeout).To(Equal(domain.Unlimited))

			desktop.Focus(gameWindow)
			poll(30)
			Expect(infra.NewProcessManager().IsRunning(sleeper.Process.Pid)).To(BeTrue())
		})

		It("keeps the previous rules when the file is broken", func() {
			newWatcher(false)
			writeConfig(`WINDOWS_SETTINGS: [unterminated`)

			poll(12)

			Expect(watcher.Table().Len()).To(Equal(2))
		})
	})

	Context("status heartbeat", func() {
		It("publishes the daemon status", func() {
			newWatcher(true)
			desktop.Focus(gameWindow)

			poll(1)

			status, err := statusFile.Read()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).NotTo(BeNil())
			Expect(status.PID).To(Equal(os.Getpid()))
			Expect(status.Rules).To(Equal(2))
			Expect(status.TrackedKeys).To(Equal(1))
			Expect(status.DryRun).To(BeTrue())
		})
	})
})
