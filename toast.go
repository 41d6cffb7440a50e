package main

// Toast levels understood by the client.
const (
	toastError = "error"
	toastInfo  = "info"
)

func sendToast(c *Client, level, message string) {
	c.send(HubEvent{Type: "toast", Level: level, Message: message})
}

// sendErrorToast sends an error toast to one connection
func sendErrorToast(c *Client, message string) {
	sendToast(c, toastError, message)
}
