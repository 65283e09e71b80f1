package dto

// JSONAudioSource is the response of the audio resolution endpoint.
type JSONAudioSource struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Container string `json:"container"`
	Bitrate   int    `json:"bitrate"`
	Size      int64  `json:"size"`
}
