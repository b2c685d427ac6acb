package utils

//FramePrefix is the file name prefix of every extracted frame
const FramePrefix = "frame_"

//FrameDigits is the zero-padded width of a frame's sequence number
const FrameDigits = 5

//FrameExt is the still image format frames are written in (lossless)
const FrameExt = "png"

//FramePattern is the printf-style output pattern handed to the transcoder, e.g. frame_00001.png
const FramePattern = FramePrefix + "%05d." + FrameExt

//MaxFrameNumber is the highest sequence number representable with FrameDigits digits
const MaxFrameNumber = 99999

//MediaExtensions are the containers the API lists as acquired media
var MediaExtensions = []string{".mp4", ".webm", ".mkv", ".mov", ".avi"}
