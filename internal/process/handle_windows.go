//go:build windows

package process

import (
	"sync"

	"golang.org/x/sys/windows"
)

const wmClose = 0x0010

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procPostMessageW = user32.NewProc("PostMessageW")

	// EnumWindows callbacks are a scarce resource, so one is shared and
	// the target pid is handed over under enumMu.
	enumMu       sync.Mutex
	enumPID      uint32
	enumCallback = windows.NewCallback(closeWindowsOf)
)

func closeWindowsOf(hwnd uintptr, _ uintptr) uintptr {
	var owner uint32
	if _, err := windows.GetWindowThreadProcessId(windows.HWND(hwnd), &owner); err != nil {
		return 1
	}
	if owner == enumPID {
		_, _, _ = procPostMessageW.Call(hwnd, wmClose, 0, 0)
	}
	return 1
}

// requestStop posts WM_CLOSE to every top-level window owned by pid.
// Console programs own no windows and are left to the force kill.
func requestStop(pid int) error {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumPID = uint32(pid)
	return windows.EnumWindows(enumCallback, nil)
}
