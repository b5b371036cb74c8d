//go:build linux

package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// reExecEnvKey signals that the process is a sandbox-init helper. Its value
// is the JSON-encoded sandboxInitConfig.
const reExecEnvKey = "_AGENTGATE_SANDBOX"

// Landlock syscall numbers. These are consistent across amd64 and arm64.
const (
	sysLandlockCreateRuleset = 444
	sysLandlockAddRule       = 445
	sysLandlockRestrictSelf  = 446
)

// Landlock rule types.
const landlockRulePathBeneath = 1

// Landlock access rights for filesystem operations.
const (
	accessFSExecute    = 1 << 0
	accessFSWriteFile  = 1 << 1
	accessFSReadFile   = 1 << 2
	accessFSReadDir    = 1 << 3
	accessFSRemoveDir  = 1 << 4
	accessFSRemoveFile = 1 << 5
	accessFSMakeChar   = 1 << 6
	accessFSMakeDir    = 1 << 7
	accessFSMakeReg    = 1 << 8
	accessFSMakeSock   = 1 << 9
	accessFSMakeFifo   = 1 << 10
	accessFSMakeBlock  = 1 << 11
	accessFSMakeSym    = 1 << 12
	accessFSRefer      = 1 << 13 // ABI v2
	accessFSTruncate   = 1 << 14 // ABI v3
)

// landlockRulesetAttr is the attribute structure for landlock_create_ruleset.
type landlockRulesetAttr struct {
	handledAccessFS uint64
}

// landlockPathBeneathAttr is the attribute for LANDLOCK_RULE_PATH_BENEATH.
type landlockPathBeneathAttr struct {
	allowedAccess uint64
	parentFd      int32
	_             [4]byte // padding
}

// sandboxInitConfig is passed to the re-exec child through reExecEnvKey.
type sandboxInitConfig struct {
	WritableRoots []string `json:"writable_roots,omitempty"`
	Argv          []string `json:"argv"`
}

// landlockInfo describes Landlock support on the current kernel.
type landlockInfo struct {
	Supported  bool
	ABIVersion int
	Features   string
}

// detectLandlock queries the Landlock ABI version without creating a
// ruleset (flag 1 is LANDLOCK_CREATE_RULESET_VERSION).
func detectLandlock() landlockInfo {
	version, _, errno := syscall.Syscall(sysLandlockCreateRuleset, 0, 0, 1)
	if errno != 0 {
		return landlockInfo{Features: "not available: " + errno.Error()}
	}
	return landlockInfo{
		Supported:  true,
		ABIVersion: int(version),
		Features:   fmt.Sprintf("ABI v%d", int(version)),
	}
}

// MaybeSandboxInit checks whether the current process was re-executed as a
// sandbox helper. If so it applies hardening and Landlock restrictions,
// execs the real command, and never returns. Otherwise it returns false.
func MaybeSandboxInit() bool {
	payload := os.Getenv(reExecEnvKey)
	if payload == "" {
		return false
	}
	os.Exit(sandboxInit(payload))
	return true // unreachable, satisfies the compiler
}

// sandboxInit applies the sandbox configuration and execs the real command.
func sandboxInit(payload string) int {
	// Landlock and prctl are per-thread operations; this helper process
	// locks its thread and never unlocks — it execs or exits.
	runtime.LockOSThread()

	var cfg sandboxInitConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: decode sandbox config: %v\n", err)
		return 1
	}
	if len(cfg.Argv) == 0 {
		fmt.Fprintln(os.Stderr, "agentgate: sandbox config has empty argv")
		return 1
	}

	if err := hardenProcess(); err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: harden: %v\n", err)
		return 1
	}
	if err := applyLandlock(cfg.WritableRoots); err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: landlock: %v\n", err)
		return 1
	}

	// Drop the marker so the command cannot recurse into init mode.
	env := make([]string, 0, len(os.Environ()))
	for _, e := range os.Environ() {
		if len(e) > len(reExecEnvKey) && e[:len(reExecEnvKey)+1] == reExecEnvKey+"=" {
			continue
		}
		env = append(env, e)
	}

	path, err := exec.LookPath(cfg.Argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: %v\n", err)
		return 127
	}
	if err := syscall.Exec(path, cfg.Argv, env); err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: exec %s: %v\n", path, err)
		return 126
	}
	return 0 // unreachable
}

// hardenProcess applies PR_SET_NO_NEW_PRIVS (required for Landlock without
// CAP_SYS_ADMIN), disables ptrace attachment, and zeroes the core dump limit.
func hardenProcess() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_DUMPABLE): %w", err)
	}
	rlimit := unix.Rlimit{Cur: 0, Max: 0}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &rlimit); err != nil {
		return fmt.Errorf("setrlimit(RLIMIT_CORE): %w", err)
	}
	return nil
}

// applyLandlock restricts the current process to read-only access
// everywhere and write access beneath the writable roots.
func applyLandlock(writableRoots []string) error {
	info := detectLandlock()
	if !info.Supported {
		return fmt.Errorf("landlock not supported by this kernel (requires >= 5.13)")
	}

	handled := uint64(accessFSExecute | accessFSWriteFile | accessFSReadFile |
		accessFSReadDir | accessFSRemoveDir | accessFSRemoveFile |
		accessFSMakeChar | accessFSMakeDir | accessFSMakeReg |
		accessFSMakeSock | accessFSMakeFifo | accessFSMakeBlock |
		accessFSMakeSym)
	if info.ABIVersion >= 2 {
		handled |= accessFSRefer
	}
	if info.ABIVersion >= 3 {
		handled |= accessFSTruncate
	}

	attr := landlockRulesetAttr{handledAccessFS: handled}
	fd, _, errno := syscall.Syscall(
		sysLandlockCreateRuleset,
		uintptr(unsafe.Pointer(&attr)),
		unsafe.Sizeof(attr),
		0,
	)
	if errno != 0 {
		return fmt.Errorf("landlock_create_ruleset: %w", errno)
	}
	rulesetFd := int(fd)
	defer func() { _ = unix.Close(rulesetFd) }()

	readAccess := uint64(accessFSExecute | accessFSReadFile | accessFSReadDir)
	writeAccess := handled

	// Read (and execute) everywhere reachable from root.
	if err := addPathRule(rulesetFd, "/", readAccess); err != nil {
		return fmt.Errorf("landlock add read rule for /: %w", err)
	}

	roots := append([]string{}, writableRoots...)
	roots = append(roots, os.TempDir())
	for _, root := range roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := addPathRule(rulesetFd, root, writeAccess); err != nil {
			return fmt.Errorf("landlock add write rule for %q: %w", root, err)
		}
	}

	if _, _, errno := syscall.Syscall(sysLandlockRestrictSelf, uintptr(rulesetFd), 0, 0); errno != 0 {
		return fmt.Errorf("landlock_restrict_self: %w", errno)
	}
	return nil
}

// accessFileOnly is the set of access rights valid for non-directory
// inodes; the kernel returns EINVAL if directory-only rights are passed
// for a file.
const accessFileOnly = accessFSExecute | accessFSWriteFile | accessFSReadFile | accessFSTruncate

// addPathRule grants access beneath path on the given ruleset.
func addPathRule(rulesetFd int, path string, access uint64) error {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err == nil && stat.Mode&unix.S_IFDIR == 0 {
		access &= accessFileOnly
	}

	pathBeneath := landlockPathBeneathAttr{
		allowedAccess: access,
		parentFd:      int32(fd),
	}
	_, _, errno := syscall.Syscall6(
		sysLandlockAddRule,
		uintptr(rulesetFd),
		landlockRulePathBeneath,
		uintptr(unsafe.Pointer(&pathBeneath)),
		0, 0, 0,
	)
	if errno != 0 {
		return fmt.Errorf("landlock_add_rule: %w", errno)
	}
	return nil
}
