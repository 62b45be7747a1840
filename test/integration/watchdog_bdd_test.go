//go:build integration

package integration

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/policy"
	"github.com/eliteGoblin/focusd/focuslock/internal/scheduler"
	"github.com/eliteGoblin/focusd/focuslock/internal/settings"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
	"github.com/eliteGoblin/focusd/focuslock/test/fixtures"
)

const (
	instagram = "com.instagram.android"
	spotify   = "com.spotify.music"
	dialer    = "com.android.dialer"
)

var _ = Describe("Foreground watchdog", func() {
	var (
		tmpDir   string
		store    *infra.EncryptedPrefs
		prefs    *settings.Settings
		clock    *scheduler.Manual
		device   *fixtures.FakeDevice
		watchdog *usecase.Watchdog
		start    time.Time
	)

	// show delivers the event the accessibility service would send.
	show := func(appID string) {
		device.Open(appID)
		watchdog.HandleEvent(domain.ForegroundEvent{
			Type:  domain.EventWindowStateChanged,
			AppID: appID,
			At:    clock.Now(),
		})
	}

	at := func(offset time.Duration) {
		clock.AdvanceTo(start.Add(offset))
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "focuslock-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedPrefs(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())
		prefs = settings.New(store)

		start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		clock = scheduler.NewManual(start)
		device = fixtures.NewFakeDevice()

		adb := infra.NewADBClientWithRunner(infra.ADBConfig{}, device.Run)
		watchdog = usecase.NewWatchdog(
			usecase.DefaultWatchdogConfig(),
			prefs,
			clock,
			infra.NewADBHomeAction(adb, zap.NewNop()),
			zap.NewNop(),
			usecase.WithHistory(store),
		)
	})

	AfterEach(func() {
		store.Close()
		os.RemoveAll(tmpDir)
	})

	Context("with the default blocked set", func() {
		It("kicks a blocked app once after 20 seconds", func() {
			at(0)
			show(instagram)
			at(5 * time.Second)
			show(instagram)

			at(19 * time.Second)
			Expect(device.Kicks()).To(BeEmpty())

			at(20 * time.Second)
			Expect(device.Kicks()).To(Equal([]string{instagram}))
			Expect(device.Foreground()).To(Equal(fixtures.LauncherApp))
			Expect(watchdog.State().Kind).To(Equal(domain.StateIdle))

			at(time.Minute)
			Expect(device.Kicks()).To(HaveLen(1))
		})

		It("restarts the window when switching between blocked apps", func() {
			at(0)
			show(instagram)
			at(5 * time.Second)
			show(spotify)

			at(20 * time.Second)
			Expect(device.Kicks()).To(BeEmpty())

			at(25 * time.Second)
			Expect(device.Kicks()).To(Equal([]string{spotify}))
		})

		It("never kicks whitelisted apps", func() {
			Expect(prefs.AddBlockedApp(dialer)).To(Succeed())

			at(0)
			show(instagram)
			at(3 * time.Second)
			show(dialer)

			at(time.Minute)
			Expect(device.Kicks()).To(BeEmpty())
			Expect(watchdog.State().Kind).To(Equal(domain.StateIdle))
		})

		It("cancels tracking when the focus lock itself comes forward", func() {
			at(0)
			show(instagram)
			at(2 * time.Second)
			show(policy.DefaultSelfAppID)

			at(time.Minute)
			Expect(device.Kicks()).To(BeEmpty())
		})

		It("records every kick in the encrypted history", func() {
			at(0)
			show(instagram)
			at(20 * time.Second)

			records, err := store.RecentKicks(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].AppID).To(Equal(instagram))
			Expect(records[0].Success).To(BeTrue())
			Expect(records[0].TrackedFor).To(Equal(20 * time.Second))
		})
	})

	Context("with user preferences", func() {
		It("uses the stored kick delay", func() {
			Expect(prefs.SetKickDelay(5 * time.Second)).To(Succeed())

			at(0)
			show(instagram)
			at(5 * time.Second)
			Expect(device.Kicks()).To(Equal([]string{instagram}))
		})

		It("ignores apps removed from the blocked set", func() {
			Expect(prefs.RemoveBlockedApp(instagram)).To(Succeed())

			at(0)
			show(instagram)
			at(time.Minute)
			Expect(device.Kicks()).To(BeEmpty())
		})

		It("picks up a blocked set change on the next event", func() {
			at(0)
			show("org.example.game")
			Expect(watchdog.State().Kind).To(Equal(domain.StateIdle))

			Expect(prefs.AddBlockedApp("org.example.game")).To(Succeed())
			show("org.example.game")
			at(20 * time.Second)
			Expect(device.Kicks()).To(Equal([]string{"org.example.game"}))
		})
	})

	Context("when the device refuses HOME", func() {
		It("goes idle without retrying and records the failure", func() {
			device.SetHomeFails(true)

			at(0)
			show(instagram)
			at(20 * time.Second)

			Expect(watchdog.State().Kind).To(Equal(domain.StateIdle))
			Expect(clock.Pending()).To(BeZero())

			records, err := store.RecentKicks(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Success).To(BeFalse())
			Expect(records[0].Error).To(ContainSubstring("home action failed"))
		})
	})

	It("keeps working when the prefs store is closed", func() {
		Expect(store.Close()).To(Succeed())

		at(0)
		show(instagram)
		Expect(watchdog.State().IsTracking(instagram)).To(BeTrue())
		at(20 * time.Second)
		Expect(device.Kicks()).To(Equal([]string{instagram}))
	})

	It("stops cleanly with a pending kick", func() {
		at(0)
		show(instagram)
		watchdog.Stop()
		at(time.Minute)
		Expect(device.Kicks()).To(BeEmpty())
	})
})
