package main

// Notifier blank imports: each import registers a provider with the
// notifier registry.

import (
	_ "github.com/Strob0t/StaffForge/internal/adapter/discord"
	_ "github.com/Strob0t/StaffForge/internal/adapter/email"
	_ "github.com/Strob0t/StaffForge/internal/adapter/lognotify"
	_ "github.com/Strob0t/StaffForge/internal/adapter/slack"
)
