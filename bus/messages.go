package bus

import (
	"time"
)

// ---------- tx ----------

type B_TxLifecycle struct { // lifecycle
	IsOpen  bool      `json:"isOpen"`
	Title   string    `json:"title"`
	Loading bool      `json:"loading"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
	TxHash  string    `json:"txHash,omitempty"`
	Op      string    `json:"op,omitempty"`
	Changed time.Time `json:"changed"`
}

// ---------- ui ----------

type B_Notify struct { // notify, notify-warning, notify-error
	Kind    string    `json:"kind"`
	Class   string    `json:"class,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
