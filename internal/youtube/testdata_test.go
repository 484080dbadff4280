package youtube

// samplePlaylistJSON is a flat --dump-single-json response for a playlist.
const samplePlaylistJSON = `{
  "_type": "playlist",
  "id": "PLtest0000000000000000000000000001",
  "title": "Road Trips",
  "uploader": "Test Uploader",
  "uploader_id": "@testuploader",
  "channel": "Test Uploader",
  "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "modified_date": "20240301",
  "playlist_count": 2,
  "entries": [
    {"_type": "url", "id": "dQw4w9WgXcQ", "title": "Video 1", "url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
    {"_type": "url", "id": "xQw4w9WgXcZ", "title": "Video 2", "url": "https://www.youtube.com/watch?v=xQw4w9WgXcZ"}
  ]
}`

// sampleChannelJSON is a flat response for a channel videos tab.
const sampleChannelJSON = `{
  "_type": "playlist",
  "id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "title": "Test Uploader - Videos",
  "uploader": "Test Uploader",
  "uploader_id": "@testuploader",
  "channel": "Test Uploader",
  "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "entries": [
    {"_type": "url", "id": "xQw4w9WgXcZ", "title": "Video 2"},
    {"_type": "url", "id": "dQw4w9WgXcQ", "title": "Video 1"}
  ]
}`

// sampleInfoJSON is an info JSON sidecar written by a download.
const sampleInfoJSON = `{
  "id": "dQw4w9WgXcQ",
  "title": "Video 1",
  "ext": "mkv",
  "channel": "Test Uploader",
  "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "uploader": "Test Uploader",
  "uploader_id": "@testuploader",
  "duration": 212,
  "upload_date": "20200101",
  "webpage_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
  "formats": [{"format_id": "137"}]
}`

// sampleProbeJSON is a trimmed ffprobe document.
const sampleProbeJSON = `{"streams":[{"index":0,"codec_type":"video"}],"format":{"format_name":"matroska,webm"}}`
