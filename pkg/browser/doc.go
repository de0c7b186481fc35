// Package browser provides the browser session layer for agent runs,
// built on Playwright.
//
// A session is one browser process, one isolated context with video
// recording, and one page. The package handles launch and teardown,
// page observation (console, page errors, failed requests, challenge
// responses), point-in-time snapshots with screenshots, and a bounded
// structural inventory of the visible UI.
//
// # Session Lifecycle
//
//  1. Launch: Launcher.Launch creates the browser, context and page
//     and wires passive event listeners before any navigation.
//  2. Use: Navigate, CaptureSnapshot, CollectInventory and the scroll
//     helpers drive the single page sequentially.
//  3. Close: Session.Close shuts everything down exactly once; the
//     context closes before the browser so the recording is flushed,
//     then the video is moved into the artifact directory.
//
// # Observation
//
// Sessions emit Events through an EventSink rather than persisting
// anything themselves. The caller decides where events land; this
// package stays storage-free.
//
// # Challenge Detection
//
// DetectChallenge matches anti-bot interstitial markers in page text
// or HTML. A 403 response from a known challenge domain trips the same
// session flag. Once tripped the flag stays set for the session's
// lifetime; callers are expected to stop driving the page.
//
// # Example Usage
//
//	launcher := browser.NewLauncher(log)
//	if err := launcher.Initialize(); err != nil {
//	    return err
//	}
//	session, err := launcher.Launch(browser.SessionOptions{
//	    Engine:      browser.EngineChromium,
//	    Headless:    true,
//	    ArtifactDir: runDir,
//	    Events:      sink,
//	})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	err = session.Navigate("https://example.com")
//	capture, err := session.CaptureSnapshot("after-navigation")
//	inventory, err := session.CollectInventory()
package browser
