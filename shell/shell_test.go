// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/kern"
)

// bootShell boots a kernel on a buffered console and returns a shell
// for it. The boot transcript is discarded; tests see only their own
// session.
func bootShell(t *testing.T) (*Shell, *kern.Kernel, *bytes.Buffer) {
	t.Helper()
	out := new(bytes.Buffer)
	var now uint64
	k, err := kern.NewKernel(nil, out, func() uint64 { now += 97; return now }, hclog.NewNullLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Boot(); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	return New(k, hclog.NewNullLogger()), k, out
}

// script types the given lines into the UART and runs sh until the
// input is exhausted. It returns the session transcript with carriage
// returns stripped.
func script(sh *Shell, k *kern.Kernel, out *bytes.Buffer, lines ...string) string {
	k.Mach.UART.QueueInput([]byte(strings.Join(lines, "\r") + "\r"))
	k.Cons.ServiceIRQ()
	sh.Run(nil)
	return strings.ReplaceAll(out.String(), "\r", "")
}

func run(t *testing.T, lines ...string) string {
	t.Helper()
	sh, k, out := bootShell(t)
	return script(sh, k, out, lines...)
}

func contains(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("transcript is missing %q:\n%s", w, got)
		}
	}
}

func TestBannerPromptExit(t *testing.T) {
	got := run(t, "exit")
	contains(t, got,
		"     Pi5 OS - UNIX Compatible Shell    \n",
		"Type 'help' for available commands.\n",
		"UNIX features: syscalls, signals, IPC, users\n",
		"root@pi5os:/home# ",
		"Goodbye!\n")
}

func TestCommandNotFound(t *testing.T) {
	got := run(t, "frobnicate")
	contains(t, got,
		"frobnicate: command not found\n",
		"Type 'help' for available commands.\n")
}

func TestHelp(t *testing.T) {
	got := run(t, "help")
	contains(t, got,
		"UNIX-Compatible Commands:\n",
		"  ls [path]     - List directory contents\n",
		"  gpio          - GPIO control\n",
		"  exit          - Exit shell\n")
}

func TestEcho(t *testing.T) {
	got := run(t, "echo hello pi5")
	// command output lands right after the prompt in the transcript
	contains(t, got, "root@pi5os:/home# hello pi5\n")
}

func TestHistory(t *testing.T) {
	got := run(t, "echo one", "echo two", "history")
	contains(t, got,
		"  1  echo one\n",
		"  2  echo two\n",
		"  3  history\n")
}

func TestHistoryScrolls(t *testing.T) {
	lines := []string{
		"echo c1", "echo c2", "echo c3", "echo c4", "echo c5", "echo c6",
		"echo c7", "echo c8", "echo c9", "echo c10", "echo c11", "history",
	}
	got := run(t, lines...)
	contains(t, got, "  1  echo c3\n", " 10  history\n")
	if strings.Contains(got, "  1  echo c1\n") || strings.Contains(got, "  2  echo c2\n") {
		t.Errorf("history kept lines beyond %d entries:\n%s", NHIST, got)
	}
}

func TestPwdCd(t *testing.T) {
	got := run(t,
		"pwd",
		"cd /tmp",
		"pwd",
		"cd /etc/hostname",
		"cd /nope",
		"cd")
	contains(t, got,
		"root@pi5os:/home# /home\n",
		"Changed directory to /tmp\n",
		"root@pi5os:/tmp# /tmp\n",
		"cd: /etc/hostname: Not a directory\n",
		"cd: /nope: No such directory\n",
		"Changed directory to /home\n")
}

func TestLs(t *testing.T) {
	got := run(t, "ls /etc", "ls /home", "ls /nope", "ls /")
	contains(t, got,
		"Directory listing for /etc:\n",
		"-rw-r--r--         6  /etc/hostname\n",
		"(empty directory)\n",
		"ls: /nope: No such file or directory\n",
		"drwx------         0  /root\n",
		"drwxr-xr-x         0  /tmp\n")
}

func TestCat(t *testing.T) {
	got := run(t, "cat /etc/hostname", "cat /proc/version", "cat /nope", "cat /etc", "cat")
	contains(t, got,
		"root@pi5os:/home# pi5os\n",
		"Minimal Pi5 OS version 0.1.0 (root@pi5) (aarch64) #1\n",
		"cat: /nope: No such file or directory\n",
		"cat: /etc: Is a directory\n",
		"cat: missing filename\n")
}

func TestFileCommands(t *testing.T) {
	got := run(t,
		"touch /tmp/note",
		"touch /tmp/note",
		"cp /etc/hostname /tmp/h",
		"cat /tmp/h",
		"mv /tmp/h /tmp/h2",
		"cat /tmp/h2",
		"rm /tmp/h2",
		"cat /tmp/h2",
		"cp /nope /tmp/x",
		"rm /nope")
	contains(t, got,
		"touch: created /tmp/note\n",
		"touch: /tmp/note (file already exists, timestamp updated)\n",
		"cp: copied /etc/hostname to /tmp/h\n",
		"mv: moved /tmp/h to /tmp/h2\n",
		"rm: removed file /tmp/h2\n",
		"cat: /tmp/h2: No such file or directory\n",
		"cp: cannot read /nope: No such file or directory\n",
		"rm: cannot remove '/nope': No such file or directory\n")
}

func TestRelativePaths(t *testing.T) {
	got := run(t,
		"cd /tmp",
		"touch rel",
		"cat rel",
		"ls")
	contains(t, got,
		"touch: created /tmp/rel\n",
		"Directory listing for /tmp:\n",
		"-rw-r--r--         0  /tmp/rel\n")
}

func TestMkdirFind(t *testing.T) {
	got := run(t,
		"mkdir /tmp/sub",
		"mkdir /tmp/sub",
		"find /tmp",
		"find / hostname")
	contains(t, got,
		"mkdir: created directory /tmp/sub\n",
		"mkdir: cannot create directory '/tmp/sub': File exists\n",
		"find: searching in /tmp for *\n",
		"\n/tmp/sub\n",
		"find: searching in / for hostname\n",
		"\n/etc/hostname\n")
}

func TestGrep(t *testing.T) {
	got := run(t,
		"grep daemon /etc/passwd",
		"grep zzz /etc/passwd",
		"grep x /nope",
		"grep lonely")
	contains(t, got,
		"grep: searching for 'daemon' in /etc/passwd\n",
		"daemon:x:1:1:daemon,,,:/usr/sbin:/bin/false\n",
		"Pattern not found\n",
		"grep: /nope: No such file or directory\n",
		"grep: missing pattern or file\n",
		"Usage: grep PATTERN FILE\n")
}

func TestWcHeadTail(t *testing.T) {
	got := run(t,
		"wc /etc/hostname",
		"head /etc/motd",
		"tail /etc/motd",
		"wc /nope")
	contains(t, got,
		// "pi5os\n" is one newline, which the original counts as two lines
		"      2       1       6 /etc/hostname\n",
		"Minimal Pi5 OS 0.1.0\n",
		"Serial console on uart0. Type 'help' for commands.\n",
		"wc: /nope: No such file or directory\n")
}

func TestPsJobsTop(t *testing.T) {
	sh, k, out := bootShell(t)
	if _, err := k.Procs.Create(kern.ENTRYPC, 1); err != nil {
		t.Fatal(err)
	}
	got := script(sh, k, out, "ps", "jobs", "top")
	contains(t, got,
		"  PID  PPID STATE    TIME COMMAND\n",
		"-------------------------------\n",
		"    1    0 RUN        0 init\n",
		"    2    1 READY      0 process\n",
		"Active jobs:\n",
		"    1  RUN      process\n",
		"    2  READY    process\n",
		"Top processes:\n",
		"  ---  ---- -----    ---- -------\n",
		"    1     0 RUN         0 process\n")
}

func TestKill(t *testing.T) {
	sh, k, out := bootShell(t)
	if _, err := k.Procs.Create(kern.ENTRYPC, 1); err != nil {
		t.Fatal(err)
	}
	got := script(sh, k, out,
		"kill 2",
		"kill 99",
		"kill -KILL 2",
		"kill abc",
		"kill -WAT 2",
		"kill")
	contains(t, got,
		"kill: sending signal 15 to PID 2\n",
		"kill: No such process\n",
		"kill: sending signal 9 to PID 2\n",
		"kill: invalid PID\n",
		"kill: invalid signal\n",
		"kill: missing PID\n",
		"Usage: kill [-SIGNAL] PID\n")
	if p := k.Procs.Lookup(2); p == nil || p.State != kern.STERM {
		t.Errorf("kill 2 did not terminate the process")
	}
}

func TestWhoamiIdSu(t *testing.T) {
	got := run(t,
		"whoami",
		"id",
		"su daemon",
		"whoami",
		"id",
		"su ghost",
		"su root", "wrong",
		"su root", "root",
		"whoami")
	contains(t, got,
		"root@pi5os:/home# root\n",
		"uid=0(root) gid=0(root) groups=0(root)\n",
		"User switched to daemon\n",
		"daemon@pi5os:/home$ daemon\n",
		"uid=1(daemon) gid=1(wheel) groups=1(wheel)\n",
		"su: user ghost does not exist\n",
		"Password: ",
		"su: Authentication failure\n",
		"User switched to root\n")
}

func TestSystemInfo(t *testing.T) {
	got := run(t, "uname", "uname -a", "date", "uptime", "free", "df")
	contains(t, got,
		"root@pi5os:/home# Minimal-Pi5-OS\n",
		"Minimal-Pi5-OS v0.1.0 raspberrypi5 aarch64 GNU/Linux\n",
		" seconds since boot\n",
		"up 0h 0m ",
		"              total        used        free      shared  buff/cache   available\n",
		"Mem:        8388608      524288     7864320           0           0     7864320\n",
		"Swap:             0           0           0\n",
		"Filesystem     1K-blocks  Used Available Use% Mounted on\n",
		"/dev/root        8388608  1048576   7340032  13% /\n")
}

func TestSystest(t *testing.T) {
	got := run(t, "test")
	contains(t, got,
		"Running system tests...\n",
		"1. UART: PASS\n",
		"2. Timer: PASS\n",
		"3. Process Manager: PASS\n",
		"4. GPIO Controller: PASS\n",
		"All tests completed.\n")
}

func TestGpio(t *testing.T) {
	got := run(t, "gpio", "gpio test", "gpio status", "gpio status 29", "gpio status x", "gpio bogus")
	contains(t, got,
		"gpio: Usage: gpio [test|status] [pin]\n",
		"GPIO test completed successfully\n",
		"GPIO Status Summary:\n",
		" 14  UART_TX    0x",
		" 29  LED_ACT    0x",
		"GPIO29 status: 0x",
		"Invalid pin number\n",
		"gpio: Unknown command: bogus\n")
}

func TestLed(t *testing.T) {
	sh, k, out := bootShell(t)
	got := script(sh, k, out,
		"led",
		"led act blink",
		"led activity on",
		"led power on",
		"led power off",
		"led disco on",
		"led activity flash")
	contains(t, got,
		"led: Usage: led [activity|power] [on|off|blink]\n",
		"Blinking activity LED...\n",
		"Blink completed\n",
		"Activity LED turned on\n",
		"Power LED turned on\n",
		"Power LED turned off\n",
		"led: Invalid LED type. Use activity or power\n",
		"led: Invalid action. Use on/off/blink\n")
	if !k.GPIO.Level(kern.PinLEDAct) {
		t.Errorf("activity LED is off after 'led activity on'")
	}
	if k.GPIO.Level(kern.PinLEDPwr) {
		t.Errorf("power LED is on after 'led power off'")
	}
}

func TestIpcs(t *testing.T) {
	sh, k, out := bootShell(t)
	if _, _, err := k.IPC.NewPipe(1); err != nil {
		t.Fatal(err)
	}
	got := script(sh, k, out, "ipcs")
	contains(t, got,
		"IPC Status:\n",
		"Pipes: 1\n",
		"Message Queues: 0\n",
		"Shared Memory: 0\n")
}

func TestInterruptKeepsShell(t *testing.T) {
	sh, k, out := bootShell(t)
	k.Mach.UART.QueueInput([]byte("\x03echo alive\rexit\r"))
	k.Cons.ServiceIRQ()
	sh.Run(nil)
	got := strings.ReplaceAll(out.String(), "\r", "")
	contains(t, got, "^C\n", "root@pi5os:/home# alive\n", "Goodbye!\n")
	if p := k.Procs.Lookup(1); p == nil || p.State == kern.STERM {
		t.Errorf("interrupt terminated init")
	}
}

func TestRebootSyncClear(t *testing.T) {
	got := run(t, "reboot", "sync", "clear")
	contains(t, got,
		"System restart not implemented. Please reset manually.\n",
		"\x1b[2J\x1b[H")
}
