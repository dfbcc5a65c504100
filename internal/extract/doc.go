// Package extract collects image URLs from decoded article payloads.
//
// Each article contributes its cover image (gambar_url, falling back to
// image_url and thumbnail_url) followed by any <img> sources found in the
// HTML body. Relative URLs are resolved against the API base URL and the
// result is de-duplicated in first-seen order.
package extract
