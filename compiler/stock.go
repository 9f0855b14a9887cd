package compiler

// StockSource is the built-in pass-through shader. It backs the default
// filter chain and the terminal blit pass appended when a preset's last pass
// renders to an intermediate framebuffer. Every preset failure falls back to
// a chain built from this source, so it must always compile.
const StockSource = `#version 300 es

#pragma stage vertex
layout(location = 0) in vec2 Position;
layout(location = 1) in vec2 TexCoord;
uniform mat4 MVP;
out vec2 vTexCoord;
void main()
{
    gl_Position = MVP * vec4(Position, 0.0, 1.0);
    vTexCoord = TexCoord;
}

#pragma stage fragment
precision highp float;
uniform sampler2D Source;
in vec2 vTexCoord;
out vec4 FragColor;
void main()
{
    FragColor = texture(Source, vTexCoord);
}
`
