package harness

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Sensor stop outcomes recorded in run.json.
const (
	SensorStopGraceful    = "graceful"
	SensorStopKilled      = "killed"
	SensorStopSpawnFailed = "spawn_failed"
)

// expandArgv substitutes the {events} placeholder in a sensor argv template.
func expandArgv(argv []string, eventsPath string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{events}", eventsPath)
	}
	return out
}

// sensorProc is a started sensor process. Its combined output goes to one
// log file in the run directory.
type sensorProc struct {
	cmd  *exec.Cmd
	log  *os.File
	done chan struct{}
}

// startSensor launches the sensor argv. The caller owns stopping it.
func startSensor(argv []string, logPath string) (*sensorProc, error) {
	if len(argv) == 0 {
		return nil, errors.New("missing sensor argv")
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}

	s := &sensorProc{cmd: cmd, log: logFile, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		s.log.Close()
		close(s.done)
	}()
	return s, nil
}

// stop asks the sensor to exit (SIGTERM), escalating to SIGKILL after grace.
// The returned outcome is recorded in run.json.
func (s *sensorProc) stop(grace time.Duration) string {
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone, or the platform cannot deliver SIGTERM.
		select {
		case <-s.done:
			return SensorStopGraceful
		default:
			_ = s.cmd.Process.Kill()
			<-s.done
			return SensorStopKilled
		}
	}

	select {
	case <-s.done:
		return SensorStopGraceful
	case <-time.After(grace):
		_ = s.cmd.Process.Kill()
		<-s.done
		return SensorStopKilled
	}
}
