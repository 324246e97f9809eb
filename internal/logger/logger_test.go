package logger

import "testing"

func TestHandlerLevels(t *testing.T) {
	l := New("test")
	l.SetFlags(0)

	var debugCount, infoCount, warnCount int
	l.AddHandler(LevelDebug, func(Level, string) { debugCount++ })
	l.AddHandler(LevelInfo, func(Level, string) { infoCount++ })
	l.AddHandler(LevelWarn, func(Level, string) { warnCount++ })

	l.Debugf("d")
	l.Infof("i")
	l.Warnf("w")

	if debugCount != 3 {
		t.Errorf("debug handler called %d times, want 3", debugCount)
	}
	if infoCount != 2 {
		t.Errorf("info handler called %d times, want 2", infoCount)
	}
	if warnCount != 1 {
		t.Errorf("warn handler called %d times, want 1", warnCount)
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{LevelDebug: "DEBUG", LevelInfo: "INFO", LevelWarn: "WARN"}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
