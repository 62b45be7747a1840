//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/scheduler"
	"github.com/eliteGoblin/focusd/focuslock/internal/settings"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
	"github.com/eliteGoblin/focusd/focuslock/test/fixtures"
)

var _ = Describe("Service over adb", func() {
	const (
		kickDelay    = 300 * time.Millisecond
		pollInterval = 20 * time.Millisecond
	)

	var (
		tmpDir   string
		store    *infra.EncryptedPrefs
		device   *fixtures.FakeDevice
		registry *infra.FileRegistry
		cancel   context.CancelFunc
		done     chan error
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "focuslock-service-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.LoadOrCreateKey(infra.NewFileKeyProvider(tmpDir))
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedPrefs(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())

		prefs := settings.New(store)
		Expect(prefs.SetKickDelay(kickDelay)).To(Succeed())

		device = fixtures.NewFakeDevice()
		registry = infra.NewFileRegistry(tmpDir, infra.NewProcessManager())

		logger := zap.NewNop()
		adb := infra.NewADBClientWithRunner(infra.ADBConfig{Serial: "emulator-5554"}, device.Run)
		loop := scheduler.NewLoop(16)
		watchdog := usecase.NewWatchdog(
			usecase.DefaultWatchdogConfig(),
			prefs,
			loop,
			infra.NewADBHomeAction(adb, logger),
			logger,
			usecase.WithHistory(store),
		)
		service := daemon.NewService(
			daemon.DefaultServiceConfig(),
			watchdog,
			loop,
			infra.NewADBEventSource(adb, pollInterval, logger),
			registry,
			logger,
		)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- service.Run(ctx) }()

		Eventually(func() (bool, error) {
			alive, _, err := registry.IsAlive()
			return alive, err
		}).Should(BeTrue())
	})

	AfterEach(func() {
		cancel()
		var err error
		Eventually(done).Should(Receive(&err))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())

		store.Close()
		os.RemoveAll(tmpDir)
	})

	It("registers itself with the adb source name", func() {
		entry, err := registry.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).NotTo(BeNil())
		Expect(entry.PID).To(Equal(os.Getpid()))
		Expect(entry.Source).To(Equal("adb"))
	})

	It("sends a blocked app home after the delay", func() {
		device.Open("com.instagram.android")

		Consistently(device.Kicks, kickDelay/2, pollInterval).Should(BeEmpty())
		Eventually(device.Kicks, 2*time.Second, pollInterval).Should(Equal([]string{"com.instagram.android"}))
		Expect(device.Foreground()).To(Equal(fixtures.LauncherApp))

		Eventually(func() (int, error) {
			records, err := store.RecentKicks(10)
			return len(records), err
		}).Should(Equal(1))
	})

	It("does not kick when the user leaves in time", func() {
		device.Open("com.reddit.frontpage")
		time.Sleep(kickDelay / 3)
		device.Open("com.android.dialer")

		Consistently(device.Kicks, 3*kickDelay, pollInterval).Should(BeEmpty())
	})

	It("keeps the armed timer while the device is unreachable", func() {
		device.Open("com.netflix.mediaclient")
		time.Sleep(5 * pollInterval)
		device.SetOffline(true)
		time.Sleep(kickDelay / 3)
		device.SetOffline(false)

		Eventually(device.Kicks, 2*time.Second, pollInterval).Should(Equal([]string{"com.netflix.mediaclient"}))
	})

	It("records a failed kick when HOME is refused", func() {
		device.SetHomeFails(true)
		device.Open("com.snapchat.android")

		Eventually(func() ([]string, error) {
			records, err := store.RecentKicks(1)
			if err != nil || len(records) == 0 {
				return nil, err
			}
			return []string{records[0].AppID, records[0].Error}, nil
		}, 2*time.Second, pollInterval).Should(ContainElement(ContainSubstring("home action failed")))
		Expect(device.Kicks()).To(BeEmpty())
		Expect(device.Foreground()).To(Equal("com.snapchat.android"))
	})
})

var _ = Describe("Service shutdown", func() {
	It("clears the registry and never fires a pending kick", func() {
		tmpDir, err := os.MkdirTemp("", "focuslock-shutdown-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tmpDir)

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		store, err := infra.NewEncryptedPrefs(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()
		prefs := settings.New(store)
		Expect(prefs.SetKickDelay(200 * time.Millisecond)).To(Succeed())

		device := fixtures.NewFakeDevice()
		device.Open("com.twitter.android")
		adb := infra.NewADBClientWithRunner(infra.ADBConfig{}, device.Run)
		registry := infra.NewFileRegistry(tmpDir, infra.NewProcessManager())
		loop := scheduler.NewLoop(16)
		watchdog := usecase.NewWatchdog(usecase.DefaultWatchdogConfig(), prefs, loop,
			infra.NewADBHomeAction(adb, zap.NewNop()), zap.NewNop())
		service := daemon.NewService(daemon.DefaultServiceConfig(), watchdog, loop,
			infra.NewADBEventSource(adb, 10*time.Millisecond, zap.NewNop()), registry, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- service.Run(ctx) }()

		Eventually(loop.Pending).Should(Equal(1))
		cancel()
		Eventually(done).Should(Receive())

		Consistently(device.Kicks, 400*time.Millisecond, 20*time.Millisecond).Should(BeEmpty())
		entry, err := registry.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).To(BeNil())
	})
})
